package httpapi

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"thepresent-be/internal/user"
)

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type userPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserPayload(u user.User) userPayload {
	return userPayload{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r registerRequest) validate() map[string]string {
	errors := map[string]string{}

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	} else if !emailRx.MatchString(strings.TrimSpace(r.Email)) {
		errors["email"] = "Please provide a valid email address"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if len(r.Password) < 6 {
		errors["password"] = "Password must be at least 6 characters long"
	}
	if r.Role != "" && !user.ValidRole(r.Role) {
		errors["role"] = "Role must be customer, vendor, or admin"
	}

	return errors
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid request body"})
		return
	}
	if fieldErrors := req.validate(); len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Validation failed", Errors: fieldErrors})
		return
	}

	token, u, err := s.users.Register(c.Request.Context(), user.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     user.Role(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserPayload(u)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) validate() map[string]string {
	errors := map[string]string{}

	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	} else if !emailRx.MatchString(strings.TrimSpace(r.Email)) {
		errors["email"] = "Please provide a valid email address"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid request body"})
		return
	}
	if fieldErrors := req.validate(); len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, errorBody{Message: "Validation failed", Errors: fieldErrors})
		return
	}

	token, u, err := s.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserPayload(u)})
}

func (s *Server) me(c *gin.Context) {
	id, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userPayload{
		ID:    id.ID,
		Name:  id.Name,
		Email: id.Email,
		Role:  string(id.Role),
	}})
}
