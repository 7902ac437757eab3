package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type authResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

func toAuthResponse(r *services.AuthResult) authResponse {
	return authResponse{User: r.User, AccessToken: r.Tokens.AccessToken, RefreshToken: r.Tokens.RefreshToken}
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Password  string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := a.auth.Register(r.Context(), services.RegisterInput{
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Password:  body.Password,
	})
	if err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthResponse(result))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := a.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.RefreshToken == "" {
		writeErr(w, http.StatusBadRequest, "refreshToken should not be empty")
		return
	}

	pair, err := a.auth.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if err := a.auth.Logout(r.Context(), user.ID); err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "logout successful"})
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.users.List(r.Context())
	if err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()).Public())
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     *string `json:"email"`
		FirstName *string `json:"firstName"`
		LastName  *string `json:"lastName"`
		IsActive  *bool   `json:"isActive"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	u, err := a.users.Update(r.Context(), chi.URLParam(r, "id"), services.UpdateUserInput{
		Email:     body.Email,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		IsActive:  body.IsActive,
	})
	if err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxPhotoSize+1<<20)

	file, header, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusBadRequest, "file size must not exceed 5MB")
			return
		}
		writeErr(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	res, err := a.uploads.UploadPhoto(r.Context(), services.FileUpload{
		Name: header.Filename,
		Size: header.Size,
		Body: file,
	})
	if err != nil {
		a.writeServiceErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "file uploaded successfully",
		"url":      res.URL,
		"fileName": res.FileName,
		"size":     res.Size,
	})
}

// deletePhoto removes the object behind ?url=, a URL previously returned by
// uploadPhoto.
func (a *API) deletePhoto(w http.ResponseWriter, r *http.Request) {
	fileURL := r.URL.Query().Get("url")
	if fileURL == "" {
		writeErr(w, http.StatusBadRequest, "url is required")
		return
	}

	if err := a.uploads.DeleteFile(r.Context(), fileURL); err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "file deleted successfully"})
}

func (a *API) presignPhoto(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeErr(w, http.StatusBadRequest, "key is required")
		return
	}

	u, err := a.uploads.PresignPhotoURL(r.Context(), key)
	if err != nil {
		a.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}
