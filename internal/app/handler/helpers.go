// Package handler contains the HTTP handlers of the user registry. It
// decodes JSON, form and multipart bodies, hands them to the registry
// service and maps its failures to HTTP statuses.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/app/service"
	"github.com/atinyakov/go-user-registry/internal/asset"
	"github.com/atinyakov/go-user-registry/internal/models"
)

const (
	// maxFormSize limits multipart bodies, image included.
	maxFormSize = 10 << 20
	// maxFormMemory is the part of a multipart body kept in memory.
	maxFormMemory = 1 << 20
)

// allowedImageTypes are the accepted content types of the image part.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// malformedRequest represents an error with a malformed HTTP request.
type malformedRequest struct {
	status int    // HTTP status code for the error
	msg    string // Error message
}

// Error returns the error message for a malformed request.
func (mr *malformedRequest) Error() string {
	return mr.msg
}

// decodeJSONBody decodes a JSON request body into the given destination struct.
// It reads the content from the request body, checks for proper JSON formatting,
// and handles common errors related to JSON parsing.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
		if mediaType != "application/json" {
			msg := "Content-Type header is not application/json"
			return &malformedRequest{status: http.StatusUnsupportedMediaType, msg: msg}
		}
	}

	// Limit the size of the request body to 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	// Decode the JSON body into the destination struct
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(&dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError

		switch {
		case errors.As(err, &syntaxError):
			msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.ErrUnexpectedEOF):
			msg := "Request body contains badly-formed JSON"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.As(err, &unmarshalTypeError):
			msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			msg := fmt.Sprintf("Request body contains unknown field %s", fieldName)
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case errors.Is(err, io.EOF):
			msg := "Request body must not be empty"
			return &malformedRequest{status: http.StatusBadRequest, msg: msg}

		case err.Error() == "http: request body too large":
			msg := "Request body must not be larger than 1MB"
			return &malformedRequest{status: http.StatusRequestEntityTooLarge, msg: msg}

		default:
			return err
		}
	}

	// Ensure the body only contains a single JSON object
	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		msg := "Request body must only contain a single JSON object"
		return &malformedRequest{status: http.StatusBadRequest, msg: msg}
	}

	return nil
}

// userForm holds the text fields of a signup or update request.
type userForm struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
	Gender      string `json:"gender"`
	Destination string `json:"destination"`
}

func (f userForm) newUser() service.NewUser {
	return service.NewUser{
		Username:    f.Username,
		Password:    f.Password,
		Email:       f.Email,
		Mobile:      f.Mobile,
		Gender:      f.Gender,
		Destination: f.Destination,
	}
}

func (f userForm) patch() service.UserPatch {
	return service.UserPatch{
		Username:    presentOrNil(f.Username),
		Password:    presentOrNil(f.Password),
		Email:       presentOrNil(f.Email),
		Mobile:      presentOrNil(f.Mobile),
		Gender:      presentOrNil(f.Gender),
		Destination: presentOrNil(f.Destination),
	}
}

func presentOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// decodeUserForm reads user fields from a JSON, urlencoded or multipart
// body. For multipart bodies the optional "image" part is returned as an
// upload; the caller must close it.
func decodeUserForm(w http.ResponseWriter, r *http.Request) (userForm, *asset.Upload, io.Closer, error) {
	var form userForm

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := decodeJSONBody(w, r, &form)
		return form, nil, nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return form, nil, nil, &malformedRequest{status: http.StatusBadRequest, msg: "Request body must be a valid form"}
	}

	form = userForm{
		Username:    r.PostForm.Get("username"),
		Password:    r.PostForm.Get("password"),
		Email:       r.PostForm.Get("email"),
		Mobile:      r.PostForm.Get("mobile"),
		Gender:      r.PostForm.Get("gender"),
		Destination: r.PostForm.Get("destination"),
	}

	if r.MultipartForm == nil {
		return form, nil, nil, nil
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil, nil
	}
	if err != nil {
		return form, nil, nil, &malformedRequest{status: http.StatusBadRequest, msg: "Unable to read image"}
	}

	ct, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if !allowedImageTypes[ct] {
		file.Close()
		return form, nil, nil, &malformedRequest{status: http.StatusBadRequest, msg: "Only JPG and PNG images are allowed"}
	}

	return form, &asset.Upload{Data: file, Ext: filepath.Ext(header.Filename)}, file, nil
}

// writeRequestError reports a decoding failure.
func writeRequestError(res http.ResponseWriter, logger *zap.Logger, err error) {
	var mr *malformedRequest
	if errors.As(err, &mr) {
		writeJSON(res, mr.status, models.MessageResponse{Message: mr.msg})
		return
	}

	logger.Error("unable to decode request", zap.Error(err))
	writeJSON(res, http.StatusInternalServerError, models.MessageResponse{Message: http.StatusText(http.StatusInternalServerError)})
}

// writeServiceError maps a registry failure to its HTTP status.
func writeServiceError(res http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeJSON(res, http.StatusNotFound, models.MessageResponse{Message: err.Error()})
	case errors.Is(err, service.ErrMissingField),
		errors.Is(err, service.ErrInvalidFormat),
		errors.Is(err, service.ErrDuplicateUsername),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrInvalidCredentials):
		writeJSON(res, http.StatusBadRequest, models.MessageResponse{Message: err.Error()})
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(res, http.StatusInternalServerError, models.MessageResponse{Message: http.StatusText(http.StatusInternalServerError)})
	}
}

func writeJSON(res http.ResponseWriter, status int, v any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	_ = json.NewEncoder(res).Encode(v)
}

// userID reads the {id} route parameter. Anything that is not a positive
// integer can not name a user.
func userID(req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
