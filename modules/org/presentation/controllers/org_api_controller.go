package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
	"github.com/iota-uz/orgtree/modules/org/services"
	"github.com/iota-uz/orgtree/pkg/composables"
)

// OrgAPIController is the JSON surface over the organization service.
type OrgAPIController struct {
	service  *services.OrganizationService
	validate *validator.Validate
}

func NewOrgAPIController(service *services.OrganizationService) *OrgAPIController {
	return &OrgAPIController{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (c *OrgAPIController) Register(r *mux.Router) {
	r.HandleFunc("/organizations", c.Create).Methods(http.MethodPost)
	r.HandleFunc("/organizations", c.List).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{id}", c.Get).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{id}", c.Update).Methods(http.MethodPut)
	r.HandleFunc("/organizations/{id}", c.Patch).Methods(http.MethodPatch)
	r.HandleFunc("/organizations/{id}", c.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/organizations/{id}/ancestors", c.Ancestors).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{id}/children", c.Children).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{id}/depth", c.Depth).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{id}/relative-depth/{ancestor}", c.RelativeDepth).Methods(http.MethodGet)
	r.HandleFunc("/organizations/{id}/realm", c.ResidentRealm).Methods(http.MethodGet)
	r.HandleFunc("/realms/{handle}", c.ResolveHandle).Methods(http.MethodGet)
}

func (c *OrgAPIController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if !c.decode(w, r, &req) {
		return
	}
	org, owner, err := req.toDomain()
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "ORG_BAD_REQUEST", "invalid identifier in request body")
		return
	}
	created, svcErr := c.service.Create(r.Context(), org, owner)
	if svcErr != nil {
		writeServiceError(w, r, svcErr)
		return
	}
	writeJSON(w, http.StatusCreated, toOrganizationResponse(created))
}

func (c *OrgAPIController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if r.URL.Query().Get("projection") == "minimal" {
		m, err := c.service.GetMinimal(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMinimalResponse(m))
		return
	}
	org, err := c.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationResponse(org))
}

func (c *OrgAPIController) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateOrganizationRequest
	if !c.decode(w, r, &req) {
		return
	}
	updated, err := c.service.Update(r.Context(), req.toDomain(id))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationResponse(updated))
}

func (c *OrgAPIController) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PatchOrganizationRequest
	if !c.decode(w, r, &req) {
		return
	}
	patched, err := c.service.Patch(r.Context(), id, req.toOps())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationResponse(patched))
}

func (c *OrgAPIController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := c.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List serves the filtered listing. Query parameters: filter (the AND
// grammar, which may itself carry after/before pseudo-attributes),
// limit, offset, order (created|name) and projection (full|minimal|
// attributes).
func (c *OrgAPIController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filterExpr := q.Get("filter")
	if after := q.Get("after"); after != "" {
		filterExpr = appendClause(filterExpr, "after eq "+after)
	}
	if before := q.Get("before"); before != "" {
		filterExpr = appendClause(filterExpr, "before eq "+before)
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	order := organization.SortCreatedDesc
	if q.Get("order") == "name" {
		order = organization.SortNameAsc
	}

	ctx := r.Context()
	switch q.Get("projection") {
	case "minimal":
		items, err := c.service.ListMinimal(ctx, filterExpr, limit, offset, order)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make([]MinimalResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMinimalResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	case "attributes":
		attrs, err := c.service.ListAttributes(ctx, filterExpr, limit, offset, order)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make(map[string][]AttributeDTO, len(attrs))
		for id, set := range attrs {
			dto := make([]AttributeDTO, 0, len(set))
			for _, a := range set {
				dto = append(dto, AttributeDTO{Key: a.Key, Value: a.Value})
			}
			out[id.String()] = dto
		}
		writeJSON(w, http.StatusOK, out)
	default:
		orgs, err := c.service.List(ctx, filterExpr, limit, offset, order)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make([]OrganizationResponse, 0, len(orgs))
		for _, org := range orgs {
			out = append(out, toOrganizationResponse(org))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (c *OrgAPIController) Ancestors(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ids, err := c.service.AncestorIDs(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (c *OrgAPIController) Children(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	recursive := r.URL.Query().Get("recursive") == "true"
	ids, err := c.service.ChildIDs(r.Context(), id, recursive)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (c *OrgAPIController) Depth(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	depth, err := c.service.Depth(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"depth": depth})
}

func (c *OrgAPIController) RelativeDepth(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ancestor, ok := pathID(w, r, "ancestor")
	if !ok {
		return
	}
	depth, err := c.service.RelativeDepth(r.Context(), id, ancestor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"relativeDepth": depth})
}

func (c *OrgAPIController) ResidentRealm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	realm, err := c.service.ResolveResidentRealm(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"realm": realm})
}

func (c *OrgAPIController) ResolveHandle(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]
	id, err := c.service.ResolveHandle(r.Context(), handle)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String()})
}

func (c *OrgAPIController) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIError(w, http.StatusBadRequest, "ORG_BAD_REQUEST", "request body is not valid JSON")
		return false
	}
	if err := c.validate.Struct(dst); err != nil {
		writeAPIError(w, http.StatusBadRequest, "ORG_BAD_REQUEST", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "ORG_BAD_REQUEST", "invalid organization id")
		return uuid.Nil, false
	}
	return id, true
}

func appendClause(expr, clause string) string {
	if expr == "" {
		return clause
	}
	return expr + " and " + clause
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// writeServiceError renders the service taxonomy. Server errors hide
// their cause from the response and log it instead.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		composables.UseLogger(r.Context()).WithError(err).Error("unclassified error")
		writeAPIError(w, http.StatusInternalServerError, "ORG_INTERNAL", "internal error")
		return
	}
	if !svcErr.IsClient() {
		composables.UseLogger(r.Context()).WithError(svcErr).Error("service failure")
	}
	writeAPIError(w, svcErr.Status, svcErr.Code, svcErr.Message)
}
