package services

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/iota-uz/orgtree/modules/org/domain/organization"
)

type PatchOpKind string

const (
	PatchAdd     PatchOpKind = "add"
	PatchReplace PatchOpKind = "replace"
	PatchRemove  PatchOpKind = "remove"
)

// PatchOp is one entry of a patch request. Value must be present for
// add and replace and absent for remove.
type PatchOp struct {
	Op    PatchOpKind
	Path  string
	Value *string
}

const attributePathPrefix = "/attributes/"

// patchOutcome summarizes what a patch changed, so the caller knows
// which cross-node checks (uniqueness, status machine) still apply.
type patchOutcome struct {
	nameChanged    bool
	statusChanged  bool
	versionChanged bool
	previousName   string
	previousStatus organization.Status
}

// applyPatch interprets the op list against the organization in place.
// versionMutable reflects the node's position relative to the sub-tree
// boundary; nodes at or below it carry an immutable version.
func applyPatch(org *organization.Organization, ops []PatchOp, versionMutable bool) (patchOutcome, *ServiceError) {
	outcome := patchOutcome{
		previousName:   org.Name(),
		previousStatus: org.Status(),
	}

	for _, op := range ops {
		switch op.Op {
		case PatchAdd, PatchReplace:
			if op.Value == nil {
				return outcome, badRequest(CodePatchValueMissing, "op "+string(op.Op)+" requires a value")
			}
		case PatchRemove:
			if op.Value != nil {
				return outcome, badRequest(CodePatchValueExtra, "op remove must omit value")
			}
		default:
			return outcome, badRequest(CodePatchOpInvalid, "unknown patch op "+string(op.Op))
		}

		switch {
		case op.Path == "/name":
			if op.Op != PatchReplace {
				return outcome, badRequest(CodePatchOpInvalid, "name is mandatory and only accepts replace")
			}
			name := strings.TrimSpace(*op.Value)
			if name == "" {
				return outcome, badRequest(CodeNameRequired, "name must not be empty")
			}
			if name != org.Name() {
				outcome.nameChanged = true
				org.Rename(name)
			}

		case op.Path == "/description":
			if op.Op != PatchReplace {
				return outcome, badRequest(CodePatchOpInvalid, "description is mandatory and only accepts replace")
			}
			org.SetDescription(strings.TrimSpace(*op.Value))

		case op.Path == "/status":
			if op.Op == PatchRemove {
				return outcome, badRequest(CodePatchOpInvalid, "status cannot be removed")
			}
			status := organization.Status(*op.Value)
			if !status.IsValid() {
				return outcome, badRequest(CodeStatusInvalid, "unknown status "+*op.Value)
			}
			if status != org.Status() {
				outcome.statusChanged = true
				org.SetStatus(status)
			}

		case op.Path == "/version":
			if op.Op == PatchRemove {
				return outcome, badRequest(CodePatchOpInvalid, "version cannot be removed")
			}
			if !versionMutable {
				return outcome, unprocessable(CodeVersionImmutable, "version is inherited below the sub-tree boundary and cannot be patched")
			}
			if _, err := semver.NewVersion(*op.Value); err != nil {
				return outcome, badRequest(CodeVersionInvalid, "version must be a semantic version")
			}
			if *op.Value != org.Version() {
				outcome.versionChanged = true
				org.SetVersion(*op.Value)
			}

		case strings.HasPrefix(op.Path, attributePathPrefix):
			key := strings.TrimPrefix(op.Path, attributePathPrefix)
			if key == "" || strings.Contains(key, "/") {
				return outcome, badRequest(CodePatchPathInvalid, "invalid attribute path "+op.Path)
			}
			switch op.Op {
			case PatchAdd:
				org.SetAttribute(key, *op.Value)
			case PatchReplace:
				if _, ok := org.Attribute(key); !ok {
					return outcome, unprocessable(CodeAttrNotFound, "attribute "+key+" does not exist")
				}
				org.SetAttribute(key, *op.Value)
			case PatchRemove:
				if !org.RemoveAttribute(key) {
					return outcome, unprocessable(CodeAttrNotFound, "attribute "+key+" does not exist")
				}
			}

		default:
			return outcome, badRequest(CodePatchPathInvalid, "unaddressable path "+op.Path)
		}
	}
	return outcome, nil
}
