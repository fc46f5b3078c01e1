package notification

import (
	"fmt"
	"strconv"

	"github.com/noah-isme/relawan-api/internal/models"
	"github.com/noah-isme/relawan-api/internal/rbac"
)

// Kind is the discriminator of a notification.
type Kind string

// Closed set of notification kinds.
const (
	KindNewVisit           Kind = "new_visit"
	KindVisitUpdated       Kind = "visit_updated"
	KindVisitRejected      Kind = "visit_rejected"
	KindVisitVerified      Kind = "visit_verified"
	KindVisitDeleted       Kind = "visit_deleted"
	KindVisitNeedsRevision Kind = "visit_needs_revision"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{
		KindNewVisit,
		KindVisitUpdated,
		KindVisitRejected,
		KindVisitVerified,
		KindVisitDeleted,
		KindVisitNeedsRevision,
	}
}

// Valid reports whether k is a member of the closed set.
func (k Kind) Valid() bool {
	switch k {
	case KindNewVisit, KindVisitUpdated, KindVisitRejected, KindVisitVerified, KindVisitDeleted, KindVisitNeedsRevision:
		return true
	}
	return false
}

// Event is a domain event rendered into a notification. The set of
// implementations is sealed to this package.
type Event interface {
	Kind() Kind
	// Payload returns the event-specific fields stored with the notification.
	Payload() map[string]interface{}
	// RedirectURL returns the in-app link, or nil when there is nothing to open.
	RedirectURL() *string
	sealed()
}

// VisitCreated announces a newly submitted visit.
type VisitCreated struct {
	VisitID   uint
	VisitName string
	ActorID   uint
	ActorName string
}

// NewVisitCreated builds the event for a visit submitted by actor.
func NewVisitCreated(visit models.Visit, actor rbac.Principal) VisitCreated {
	return VisitCreated{VisitID: visit.ID, VisitName: visit.Name, ActorID: actor.UserID, ActorName: actor.Name}
}

func (VisitCreated) Kind() Kind { return KindNewVisit }
func (VisitCreated) sealed()    {}

func (e VisitCreated) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visit_id":   e.VisitID,
		"visit_name": e.VisitName,
		"actor_id":   e.ActorID,
		"actor_name": e.ActorName,
	}
}

func (e VisitCreated) RedirectURL() *string {
	return link(fmt.Sprintf("/kunjungan/%d", e.VisitID))
}

// VisitUpdated announces that a volunteer changed a visit that awaits review.
type VisitUpdated struct {
	VisitID   uint
	UpdaterID uint
	OwnerID   uint
}

// NewVisitUpdated builds the event for a visit changed by updater.
func NewVisitUpdated(visit models.Visit, updater rbac.Principal) VisitUpdated {
	return VisitUpdated{VisitID: visit.ID, UpdaterID: updater.UserID, OwnerID: visit.VolunteerID}
}

func (VisitUpdated) Kind() Kind { return KindVisitUpdated }
func (VisitUpdated) sealed()    {}

func (e VisitUpdated) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visit_id":   e.VisitID,
		"updater_id": e.UpdaterID,
		"owner_id":   e.OwnerID,
	}
}

func (e VisitUpdated) RedirectURL() *string {
	return link("/kunjungan?relawan_id=" + strconv.FormatUint(uint64(e.OwnerID), 10) + "&status=" + models.VisitStatusPending)
}

// VisitRejected tells the owner that a visit was rejected.
type VisitRejected struct {
	VisitID   uint
	VisitName string
	Message   string
}

// NewVisitRejected builds the rejection event carrying the reviewer's message.
func NewVisitRejected(visit models.Visit, message string) VisitRejected {
	return VisitRejected{VisitID: visit.ID, VisitName: visit.Name, Message: message}
}

func (VisitRejected) Kind() Kind          { return KindVisitRejected }
func (VisitRejected) RedirectURL() *string { return nil }
func (VisitRejected) sealed()              {}

func (e VisitRejected) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visit_id":   e.VisitID,
		"visit_name": e.VisitName,
		"message":    e.Message,
	}
}

// VisitVerified tells the owner that a visit was accepted.
type VisitVerified struct {
	VisitID   uint
	VisitName string
}

// NewVisitVerified builds the verification event.
func NewVisitVerified(visit models.Visit) VisitVerified {
	return VisitVerified{VisitID: visit.ID, VisitName: visit.Name}
}

func (VisitVerified) Kind() Kind          { return KindVisitVerified }
func (VisitVerified) RedirectURL() *string { return nil }
func (VisitVerified) sealed()              {}

func (e VisitVerified) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visit_id":   e.VisitID,
		"visit_name": e.VisitName,
	}
}

// VisitDeleted announces a removed visit. The visit no longer exists, so it never links anywhere.
type VisitDeleted struct {
	VisitName      string
	ActorName      string
	ActorRoleLabel string
}

// NewVisitDeleted builds the deletion event.
func NewVisitDeleted(visitName, actorName, roleLabel string) VisitDeleted {
	return VisitDeleted{VisitName: visitName, ActorName: actorName, ActorRoleLabel: roleLabel}
}

func (VisitDeleted) Kind() Kind          { return KindVisitDeleted }
func (VisitDeleted) RedirectURL() *string { return nil }
func (VisitDeleted) sealed()              {}

func (e VisitDeleted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visit_name": e.VisitName,
		"actor_name": e.ActorName,
		"actor_role": e.ActorRoleLabel,
	}
}

// VisitNeedsRevision asks the owner to fix a visit.
type VisitNeedsRevision struct {
	VisitID   uint
	VisitName string
	Comment   string
}

// NewVisitNeedsRevision builds the revision request; comment may be empty.
func NewVisitNeedsRevision(visit models.Visit, comment string) VisitNeedsRevision {
	return VisitNeedsRevision{VisitID: visit.ID, VisitName: visit.Name, Comment: comment}
}

func (VisitNeedsRevision) Kind() Kind { return KindVisitNeedsRevision }
func (VisitNeedsRevision) sealed()    {}

func (e VisitNeedsRevision) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"visit_id":   e.VisitID,
		"visit_name": e.VisitName,
	}
	if e.Comment != "" {
		payload["comment"] = e.Comment
	}
	return payload
}

func (e VisitNeedsRevision) RedirectURL() *string {
	return link(fmt.Sprintf("/kunjungan/%d/edit", e.VisitID))
}

func link(path string) *string {
	return &path
}
