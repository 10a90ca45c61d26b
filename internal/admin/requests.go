package admin

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type StatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=active suspended disabled"`
}

type BulkStatusRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,max=100,dive,uuid"`
	Status  Status   `json:"status" validate:"required,oneof=active suspended disabled"`
}

type ExportRequest struct {
	Format string `json:"format" validate:"omitempty,oneof=csv json"`
}
