package api

// HealthCheckOutput is the body of GET / and GET /readyz.
type HealthCheckOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// VerifyTokenInput is the body of POST /api/auth/verify.
type VerifyTokenInput struct {
	Body struct {
		Token string `json:"token" doc:"Bearer token to check"`
	}
}

// VerifyTokenOutput reports whether the identity provider accepted the token.
type VerifyTokenOutput struct {
	Body struct {
		Valid bool `json:"valid"`
	}
}

// UserBody is the authenticated caller.
type UserBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role" enum:"ADMIN,INSTRUCTOR,STUDENT"`
}

// MeOutput is the body of GET /api/auth/me.
type MeOutput struct {
	Body UserBody
}
