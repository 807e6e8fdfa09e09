package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/user"
)

type userRequest struct {
	ExternalID string `json:"externalId" validate:"max=128"`
	Email      string `json:"email" validate:"required,email"`
	Username   string `json:"username" validate:"required,max=64"`
	Role       string `json:"role" validate:"omitempty,oneof=customer admin delivery"`
}

func (req *userRequest) decode(d *jx.Decoder, key string) (err error) {
	switch key {
	case "externalId":
		req.ExternalID, err = d.Str()
	case "email":
		req.Email, err = d.Str()
	case "username":
		req.Username, err = d.Str()
	case "role":
		req.Role, err = d.Str()
	default:
		err = d.Skip()
	}
	return err
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeObject(w, r, req.decode); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	u := user.User{
		ID:         uuid.NewString(),
		ExternalID: req.ExternalID,
		Email:      req.Email,
		Username:   req.Username,
		Role:       user.Role(req.Role),
	}
	if u.Role == "" {
		u.Role = user.RoleCustomer
	}
	if err := h.users.Create(r.Context(), &u); err != nil {
		h.fail(w, r, errors.Wrap(err, "create user"))
		return
	}
	zctx.From(r.Context()).Info("User registered",
		zap.String("user_id", u.ID),
		zap.String("role", string(u.Role)),
	)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeUser(e, &u) })
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "get user"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, u) })
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.Obj(func(e *jx.Encoder) {
		strField(e, "id", u.ID)
		optStrField(e, "externalId", u.ExternalID)
		strField(e, "email", u.Email)
		strField(e, "username", u.Username)
		strField(e, "role", string(u.Role))
		timeField(e, "createdAt", u.CreatedAt)
	})
}
