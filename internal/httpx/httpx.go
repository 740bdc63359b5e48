// Package httpx holds the JSON plumbing shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-payreq-go/internal/apperr"
)

const maxBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes {"success":true, key: v}.
func OK(w http.ResponseWriter, status int, key string, v any) {
	WriteJSON(w, status, map[string]any{"success": true, key: v})
}

// WriteError maps err to a status through its apperr kind. Internal details
// are logged, never written to the client.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "err", err)
	} else {
		logger.Debugw("request rejected", "method", r.Method, "path", r.URL.Path, "kind", kind, "err", err)
	}
	WriteJSON(w, status, map[string]any{
		"success": false,
		"error":   apperr.MessageOf(err),
		"kind":    kind,
	})
}

// Decode reads a JSON body into dst and runs struct validation on it.
// Numbers inside free-form fields decode as json.Number so they keep their
// exact digits.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return apperr.InvalidInput("invalid payload")
	}
	return Validate(dst)
}

// Validate runs the `validate` struct tags and converts failures to
// invalid-input errors naming the first offending field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperr.InvalidInput(fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
	}
	return apperr.InvalidInput("invalid payload")
}

// FlexString accepts either a JSON string or a JSON number, so amounts can
// be posted as "0.5" or 0.5 without losing digits.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }
