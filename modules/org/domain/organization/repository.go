package organization

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the hierarchy store: persisted tree plus closure-table
// reads. Implementations are thin, fail-fast wrappers over transactional
// SQL; retries are a caller concern.
type Repository interface {
	// Insert persists the node, its attributes and the reflexive plus
	// inherited ancestor edges in one transaction.
	Insert(ctx context.Context, org *Organization) error
	// Update replaces the mutable fields and the attribute set.
	Update(ctx context.Context, org *Organization) error
	// Delete cascades to attributes and every edge the node appears in.
	Delete(ctx context.Context, id uuid.UUID) error

	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetRoot(ctx context.Context) (*Organization, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// ExistsByName checks the sibling scope under parentID. A nil
	// parentID checks root-level nodes.
	ExistsByName(ctx context.Context, parentID *uuid.UUID, name string) (bool, error)
	// NameExistsInSubtree checks name collisions across every descendant
	// of rootID, excluding rootID itself.
	NameExistsInSubtree(ctx context.Context, rootID uuid.UUID, name string) (bool, error)

	HasChildren(ctx context.Context, id uuid.UUID) (bool, error)
	// ChildIDs returns direct children, or the whole descendant set when
	// recursive is true.
	ChildIDs(ctx context.Context, id uuid.UUID, recursive bool) ([]uuid.UUID, error)
	// AncestorIDs is self-inclusive and ordered nearest-first.
	AncestorIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	// Depth returns -1 when the node does not exist.
	Depth(ctx context.Context, id uuid.UUID) (int, error)
	// RelativeDepth returns the depth of a below b, 0 when a == b, and
	// -1 when b is not an ancestor of a.
	RelativeDepth(ctx context.Context, a, b uuid.UUID) (int, error)
	IsAncestor(ctx context.Context, candidate, node uuid.UUID) (bool, error)
}

// QueryRepository is the filtered listing side, one query function
// parameterized by projection behind thin wrappers.
type QueryRepository interface {
	Find(ctx context.Context, params *FindParams) ([]*Organization, error)
	FindMinimal(ctx context.Context, params *FindParams) ([]Minimal, error)
	// FindAttributes returns only the attribute sets of matching
	// organizations, keyed by organization id.
	FindAttributes(ctx context.Context, params *FindParams) (map[uuid.UUID][]Attribute, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
}
