package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/detailing-api/pkg/httputil"
	"github.com/jwalitptl/detailing-api/pkg/validator"
)

const MessageInvalidInput = "Invalid input"

// ReadObject reads the request body as a JSON object. On failure it answers
// 400 and returns false.
func ReadObject(c *gin.Context) (map[string]interface{}, bool) {
	return readObject(c, false)
}

// OptionalObject is ReadObject, except that an empty body reads as {}.
func OptionalObject(c *gin.Context) (map[string]interface{}, bool) {
	return readObject(c, true)
}

func readObject(c *gin.Context, allowEmpty bool) (map[string]interface{}, bool) {
	if c.Request.Body == nil {
		c.Request.Body = http.NoBody
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
				Error:   httputil.TitleTooLarge,
				Message: "Request body too large",
			})
			return nil, false
		}
		httputil.RespondWithValidation(c, MessageInvalidInput, []string{"request body could not be read"})
		return nil, false
	}

	if allowEmpty && len(bytes.TrimSpace(raw)) == 0 {
		return map[string]interface{}{}, true
	}

	body, err := validator.Object(raw)
	if err != nil {
		httputil.RespondWithValidation(c, MessageInvalidInput, []string{validator.ErrNotObject.Error()})
		return nil, false
	}
	return body, true
}

// Validate answers 400 with details when there are any, and reports whether
// the request may continue.
func Validate(c *gin.Context, details []string) bool {
	if len(details) == 0 {
		return true
	}
	httputil.RespondWithValidation(c, MessageInvalidInput, details)
	return false
}

// IDFromBody reads a positive integer "id" from body, falling back to the
// ?id= query parameter.
func IDFromBody(c *gin.Context, body map[string]interface{}) (int64, bool) {
	v, ok := body["id"]
	if !ok || v == nil {
		q, present := c.GetQuery("id")
		if !present {
			httputil.RespondWithValidation(c, MessageInvalidInput, []string{"id is required"})
			return 0, false
		}
		v = q
	}
	id, ok := validator.ID(v)
	if !ok {
		httputil.RespondWithValidation(c, MessageInvalidInput, []string{"id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// IDFromQuery parses ?id=. present is false when the parameter is absent.
func IDFromQuery(c *gin.Context) (id int64, present, ok bool) {
	q, present := c.GetQuery("id")
	if !present {
		return 0, false, true
	}
	id, ok = validator.ID(q)
	if !ok {
		httputil.RespondWithValidation(c, MessageInvalidInput, []string{"id must be a positive integer"})
	}
	return id, true, ok
}
