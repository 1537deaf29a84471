package domain

import (
	"regexp"
	"strings"

	"github.com/naka-gawa/repo-health/internal/apperr"
)

// EntityKind is the kind of GitHub entity a URL names.
type EntityKind string

const (
	KindUser         EntityKind = "User"
	KindOrganization EntityKind = "Organization"
	KindRepository   EntityKind = "Repository"
)

// MsgInvalidURL is reported for any input that is not a GitHub user, organization, or repository URL.
const MsgInvalidURL = "Invalid GitHub URL"

// githubURLPattern accepts an optional scheme and www. prefix, the github.com host
// in any case, one or two non-empty path segments, an optional .git suffix,
// an optional trailing slash, and a trailing query or fragment.
var githubURLPattern = regexp.MustCompile(`^(?i:https?://)?(?i:www\.)?(?i:github\.com)/([^/?#\s]+?)(?:/([^/?#\s]+?))?(?:\.git)?/?(?:[?#]\S*)?$`)

// EntityRef identifies a GitHub entity. Kind is empty until an owner-only
// reference has been classified as a user or an organization.
type EntityRef struct {
	Kind        EntityKind
	PrimaryName string
	RepoName    string
}

// HasRepo reports whether the reference names a repository.
func (r EntityRef) HasRepo() bool {
	return r.RepoName != ""
}

// WithKind returns a copy of r classified as kind.
func (r EntityRef) WithKind(kind EntityKind) EntityRef {
	r.Kind = kind
	return r
}

// ParseGitHubURL extracts the owner and optional repository name from raw.
// A reference with a repository is always of KindRepository.
func ParseGitHubURL(raw string) (EntityRef, error) {
	m := githubURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return EntityRef{}, apperr.New(apperr.KindValidation, MsgInvalidURL)
	}
	ref := EntityRef{PrimaryName: m[1], RepoName: m[2]}
	if ref.HasRepo() {
		ref.Kind = KindRepository
	}
	return ref, nil
}
