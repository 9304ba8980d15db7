package facts

type UserProperties struct {
	IsSubscriber int `json:"is_subscriber"`
}

// PostData is the post-derived part of the payload. All three keys are
// present on single views, even when empty.
type PostData struct {
	PostAuthor   string `json:"post_author"`
	PostCategory string `json:"post_category"`
	PostTags     string `json:"post_tags"`
}

// Payload is the object pushed onto dataLayer.
type Payload struct {
	UserProperties UserProperties `json:"user_properties"`
	*PostData
}

// PostData returns nil off single views.
func (f Facts) PostData() *PostData {
	if !f.Single {
		return nil
	}
	return &PostData{
		PostAuthor:   f.PostAuthor,
		PostCategory: f.PostCategory,
		PostTags:     f.PostTags,
	}
}

func (f Facts) Payload() Payload {
	return Payload{
		UserProperties: UserProperties{IsSubscriber: f.IsSubscriber},
		PostData:       f.PostData(),
	}
}
