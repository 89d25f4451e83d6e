package post

type CreatePostRequest struct {
	Content   string   `json:"content" validate:"required,min=1,max=2000"`
	ImageURL  string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
	StartupID string   `json:"startupId,omitempty" validate:"omitempty,uuid"`
	Tags      []string `json:"tags,omitempty" validate:"max=5,dive,min=1,max=30"`
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=1000"`
}
