package admin

import "time"

// PrincipalResponse is the HTTP representation of a principal. The password hash
// never leaves the package.
type PrincipalResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PrincipalsListResponse wraps the list of principals.
type PrincipalsListResponse struct {
	Users []PrincipalResponse `json:"users"`
	Total int                 `json:"total"`
}

type LoginResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int               `json:"expires_in"`
	Admin       PrincipalResponse `json:"admin"`
}

type BulkStatusResponse struct {
	Updated int `json:"updated"`
}

type ExportResponse struct {
	Format     string              `json:"format"`
	ExportedAt time.Time           `json:"exportedAt"`
	Records    []PrincipalResponse `json:"records"`
}

func toResponse(p *Principal) PrincipalResponse {
	return PrincipalResponse{
		ID:        p.ID.String(),
		Email:     p.Email,
		Role:      p.Role,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toResponses(principals []*Principal) []PrincipalResponse {
	out := make([]PrincipalResponse, 0, len(principals))
	for _, p := range principals {
		out = append(out, toResponse(p))
	}
	return out
}
