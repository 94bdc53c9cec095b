package myhttp

import (
	"fmt"
	"net/http"

	formcodec "github.com/go-playground/form/v4"

	"github.com/MarcGrol/coursebackend/lib/myerrors"
)

// DecodeForm fills dst from the query string and, for form posts, the body.
// Fields are mapped with `form` struct tags.
func DecodeForm(r *http.Request, dst interface{}) error {
	err := r.ParseForm()
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}
	err = formcodec.NewDecoder().Decode(dst, r.Form)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %s", err))
	}
	return nil
}
