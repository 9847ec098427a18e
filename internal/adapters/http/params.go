package httpadapter

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/docquery-assistant/internal/core/domain"
)

// pathID binds a UUID path parameter the way generated server wrappers do.
func pathID(r *http.Request, name string) (string, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, r.PathValue(name), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind "+name, err)
	}
	return id.String(), nil
}
