package auditlog

import (
	"log"

	"github.com/cpusmsng/vercajch/pkg/models"
)

// Persister stores finished audit entries. Failures are logged and
// swallowed; auditing never fails the operation it describes.
type Persister interface {
	PersistLog(auditLog models.AuditLog, data interface{}) error
}

type Auditlog struct {
	r Persister
}

type Auditable interface {
	CreateLogView() models.AuditLog
}

func (a *Auditlog) Log(action string, data interface{}, item Auditable) {
	auditLog := item.CreateLogView()
	auditLog.Action = action

	if err := a.r.PersistLog(auditLog, data); err != nil {
		log.Println("Unable to create AuditLog entry for id ", auditLog.ResourceID)
		return
	}
}

func (a *Auditlog) LogAs(userID int, action string, data interface{}, item Auditable) {
	auditLog := item.CreateLogView()
	auditLog.Action = action
	auditLog.UserID = &userID

	if err := a.r.PersistLog(auditLog, data); err != nil {
		log.Println("Unable to create AuditLog entry for id ", auditLog.ResourceID)
		return
	}
}

func NewAuditLog(persister Persister) *Auditlog {
	return &Auditlog{r: persister}
}
