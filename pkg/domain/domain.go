// Package domain holds the entities, enums, and invariants shared across
// Octopus's subsystems. Every entity carries an immutable id and creation
// timestamp; mutable entities also carry an update timestamp.
package domain

import "time"

// NewID returns a fresh 128-bit identifier encoded as a UUID string.
func NewID() string {
	return newUUID()
}

// WorkspaceRole orders workspace membership power. Roles compare with the
// standard operators: Guest < Member < Admin < Owner.
type WorkspaceRole int

const (
	WorkspaceRoleNone WorkspaceRole = iota
	WorkspaceRoleGuest
	WorkspaceRoleMember
	WorkspaceRoleAdmin
	WorkspaceRoleOwner
)

func (r WorkspaceRole) String() string {
	switch r {
	case WorkspaceRoleGuest:
		return "Guest"
	case WorkspaceRoleMember:
		return "Member"
	case WorkspaceRoleAdmin:
		return "Admin"
	case WorkspaceRoleOwner:
		return "Owner"
	default:
		return "None"
	}
}

// ParseWorkspaceRole maps a role name to its WorkspaceRole value.
func ParseWorkspaceRole(s string) (WorkspaceRole, bool) {
	switch s {
	case "Guest":
		return WorkspaceRoleGuest, true
	case "Member":
		return WorkspaceRoleMember, true
	case "Admin":
		return WorkspaceRoleAdmin, true
	case "Owner":
		return WorkspaceRoleOwner, true
	default:
		return WorkspaceRoleNone, false
	}
}

// ProjectRole orders project membership power: Viewer < Editor < ProjectAdmin.
type ProjectRole int

const (
	ProjectRoleNone ProjectRole = iota
	ProjectRoleViewer
	ProjectRoleEditor
	ProjectRoleProjectAdmin
)

func (r ProjectRole) String() string {
	switch r {
	case ProjectRoleViewer:
		return "Viewer"
	case ProjectRoleEditor:
		return "Editor"
	case ProjectRoleProjectAdmin:
		return "ProjectAdmin"
	default:
		return "None"
	}
}

// ParseProjectRole maps a role name to its ProjectRole value.
func ParseProjectRole(s string) (ProjectRole, bool) {
	switch s {
	case "Viewer":
		return ProjectRoleViewer, true
	case "Editor":
		return ProjectRoleEditor, true
	case "ProjectAdmin":
		return ProjectRoleProjectAdmin, true
	default:
		return ProjectRoleNone, false
	}
}

// Workspace is the root tenancy unit: it owns memberships, projects, OAuth
// apps, and an optional storage quota.
type Workspace struct {
	ID          string
	Name        string
	Description string
	QuotaBytes  *int64 // nil means unlimited
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Project is a child tenancy unit scoping files, models, and upload
// sessions.
type Project struct {
	ID          string
	WorkspaceID string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is auto-provisioned on first authenticated request. Subject is the
// globally unique, stable identifier supplied by the authentication
// principal.
type User struct {
	ID          string
	Subject     string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// WorkspaceMembership binds a user to a workspace with a role. At most one
// membership exists per (workspace, user) pair.
type WorkspaceMembership struct {
	ID          string
	WorkspaceID string
	UserID      string
	Role        WorkspaceRole
	CreatedAt   time.Time
}

// ProjectMembership binds a user to a project with a role. At most one
// membership exists per (project, user) pair.
type ProjectMembership struct {
	ID        string
	ProjectID string
	UserID    string
	Role      ProjectRole
	CreatedAt time.Time
}

// FileKind distinguishes user-uploaded source files from processor-derived
// artifacts.
type FileKind string

const (
	FileKindSource   FileKind = "Source"
	FileKindArtifact FileKind = "Artifact"
)

// FileCategory classifies the content a File row refers to.
type FileCategory string

const (
	FileCategoryIfc        FileCategory = "Ifc"
	FileCategoryWexBim     FileCategory = "WexBim"
	FileCategoryProperties FileCategory = "Properties"
	FileCategoryThumbnail  FileCategory = "Thumbnail"
	FileCategoryLog        FileCategory = "Log"
	FileCategoryOther      FileCategory = "Other"
)

// File is a registry row pointing at content-addressed bytes in a storage
// provider. storageProvider+storageKey uniquely resolves the bytes; when
// IsDeleted is true the bytes may be reclaimed asynchronously but the row
// survives for lineage.
type File struct {
	ID              string
	ProjectID       string
	Name            string
	ContentType     string
	SizeBytes       int64
	Checksum        string
	Kind            FileKind
	Category        FileCategory
	StorageProvider string
	StorageKey      string
	IsDeleted       bool
	CreatedAt       time.Time
	DeletedAt       *time.Time
}

// FileLinkType names the relationship a FileLink edge represents.
type FileLinkType string

const (
	FileLinkDerivedFrom  FileLinkType = "DerivedFrom"
	FileLinkThumbnailOf  FileLinkType = "ThumbnailOf"
	FileLinkPropertiesOf FileLinkType = "PropertiesOf"
	FileLinkLogOf        FileLinkType = "LogOf"
)

// FileLink is a directed edge in the file lineage DAG. Cascade on deleting
// the target file is restrictive: a non-deleted link targeting a file
// blocks that file's soft-delete.
type FileLink struct {
	ID           string
	SourceFileID string
	TargetFileID string
	LinkType     FileLinkType
	CreatedAt    time.Time
}

// UploadSessionStatus is the upload state machine's current state.
type UploadSessionStatus string

const (
	UploadSessionReserved  UploadSessionStatus = "Reserved"
	UploadSessionUploading UploadSessionStatus = "Uploading"
	UploadSessionCommitted UploadSessionStatus = "Committed"
	UploadSessionExpired   UploadSessionStatus = "Expired"
	UploadSessionFailed    UploadSessionStatus = "Failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s UploadSessionStatus) IsTerminal() bool {
	switch s {
	case UploadSessionCommitted, UploadSessionExpired, UploadSessionFailed:
		return true
	default:
		return false
	}
}

// UploadSession tracks a single reserve -> upload -> commit transaction.
type UploadSession struct {
	ID                string
	ProjectID         string
	FileName          string
	ContentType       string
	ExpectedSizeBytes *int64
	Status            UploadSessionStatus
	TempStorageKey    string
	CommittedFileID   *string
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// Model is a named container for an ordered sequence of versions.
type Model struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ModelVersionStatus tracks a version through the processing pipeline.
type ModelVersionStatus string

const (
	ModelVersionPending    ModelVersionStatus = "Pending"
	ModelVersionProcessing ModelVersionStatus = "Processing"
	ModelVersionReady      ModelVersionStatus = "Ready"
	ModelVersionFailed     ModelVersionStatus = "Failed"
)

// ModelVersion is a specific revision of a model, tied to one IFC source
// file and up to two derived artifacts.
type ModelVersion struct {
	ID               string
	ModelID          string
	VersionNumber    int
	IfcFileID        string
	WexBimFileID     *string
	PropertiesFileID *string
	Status           ModelVersionStatus
	ErrorMessage     string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
}

// OAuthClientType distinguishes browser/native apps (which cannot hold a
// secret) from server-side apps.
type OAuthClientType string

const (
	OAuthClientPublic       OAuthClientType = "Public"
	OAuthClientConfidential OAuthClientType = "Confidential"
)

// OAuthApp is an OAuth2 client registered under a workspace.
type OAuthApp struct {
	ID              string
	WorkspaceID     string
	ClientID        string
	ClientSecretHash string
	ClientType      OAuthClientType
	RedirectURIs    []string
	AllowedScopes   []string
	IsEnabled       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CodeChallengeMethod names the PKCE transform applied to the verifier.
type CodeChallengeMethod string

const (
	CodeChallengeS256  CodeChallengeMethod = "S256"
	CodeChallengePlain CodeChallengeMethod = "plain"
)

// AuthorizationCode is a single-use grant issued by /oauth/authorize and
// redeemed by /oauth/token. Only its hash is stored, never the code itself.
type AuthorizationCode struct {
	ID                  string
	CodeHash            string
	OAuthAppID          string
	UserID              string
	WorkspaceID         string
	Scopes              []string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod CodeChallengeMethod
	CreatedAt           time.Time
	ExpiresAt           time.Time
	IsUsed              bool
	UsedAt              *time.Time
}
