package api

import (
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"
)

// =============================================================================
// OpenAPI Document
// =============================================================================

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

// handleOpenAPI serves the generated OpenAPI 3.0 document. The document is
// built once, reflectively, from the API's request and response types.
func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	openapiOnce.Do(func() {
		openapiDoc, openapiErr = buildOpenAPIDoc()
	})
	if openapiErr != nil {
		h.logger.Error("failed to build openapi document", "error", openapiErr)
		h.writeError(w, http.StatusInternalServerError, "failed to build openapi document", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, openapiDoc)
}

func buildOpenAPIDoc() (*openapi3.T, error) {
	gen := openapi3gen.NewGenerator()

	buildSchema, err := gen.NewSchemaRefForValue(&BuildResponse{}, nil)
	if err != nil {
		return nil, err
	}
	listSchema, err := gen.NewSchemaRefForValue(&ListBuildsResponse{}, nil)
	if err != nil {
		return nil, err
	}
	createSchema, err := gen.NewSchemaRefForValue(&CreateBuildRequest{}, nil)
	if err != nil {
		return nil, err
	}
	errorSchema, err := gen.NewSchemaRefForValue(&ErrorResponse{}, nil)
	if err != nil {
		return nil, err
	}

	jsonResponse := func(description string, schema *openapi3.SchemaRef) *openapi3.ResponseRef {
		return &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription(description).
				WithJSONSchemaRef(schema),
		}
	}

	idParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()),
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "stoker build API",
			Description: "Submit build recipes and inspect the build ledger.",
			Version:     "1.0.0",
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/api/v1/builds", &openapi3.PathItem{
				Post: &openapi3.Operation{
					OperationID: "createBuild",
					Summary:     "Submit a recipe and run a build",
					RequestBody: &openapi3.RequestBodyRef{
						Value: openapi3.NewRequestBody().
							WithRequired(true).
							WithJSONSchemaRef(createSchema),
					},
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(http.StatusCreated, jsonResponse("build succeeded", buildSchema)),
						openapi3.WithStatus(http.StatusBadRequest, jsonResponse("request body or recipe invalid", errorSchema)),
						openapi3.WithStatus(http.StatusUnprocessableEntity, jsonResponse("build failed; the failed ledger record", buildSchema)),
					),
				},
				Get: &openapi3.Operation{
					OperationID: "listBuilds",
					Summary:     "List builds, newest first",
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(http.StatusOK, jsonResponse("build list", listSchema)),
					),
				},
			}),
			openapi3.WithPath("/api/v1/builds/{id}", &openapi3.PathItem{
				Get: &openapi3.Operation{
					OperationID: "getBuild",
					Summary:     "Get one build by reference ID",
					Parameters:  openapi3.Parameters{idParam},
					Responses: openapi3.NewResponses(
						openapi3.WithStatus(http.StatusOK, jsonResponse("build", buildSchema)),
						openapi3.WithStatus(http.StatusNotFound, jsonResponse("not found", errorSchema)),
					),
				},
			}),
		),
	}

	return doc, nil
}
