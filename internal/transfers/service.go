package transfers

import (
	"time"

	"github.com/cpusmsng/vercajch/internal/events"
	"github.com/cpusmsng/vercajch/pkg/auditlog"
	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

// requestLifetime bounds how long a pending request stays open before the
// sweeper expires it.
const requestLifetime = 7 * 24 * time.Hour

// EquipmentStore is the slice of the equipment repository the transfer
// engine needs: registry reads plus the transactional holder flip.
type EquipmentStore interface {
	GetEquipment(equipmentID int) (*models.Equipment, error)
	RequiresApproval(equipmentID int) (bool, error)
	HeldEquipmentIDs(userID int) ([]int, error)
	AssignHolder(tx *goqu.TxDatabase, equipmentID int, holderID int) error
}

// UserStore resolves team membership for leader approvals.
type UserStore interface {
	TeamMemberIDs(leaderID int) ([]int, error)
	IsTeamMember(leaderID, userID int) (bool, error)
}

type TransferService struct {
	repo      TransferRepository
	equipment EquipmentStore
	users     UserStore
	publisher events.Publisher
	auditLog  *auditlog.Auditlog
	log       *zap.Logger
}

func NewTransferService(
	repo TransferRepository,
	equipment EquipmentStore,
	users UserStore,
	publisher events.Publisher,
	auditLog *auditlog.Auditlog,
	log *zap.Logger,
) *TransferService {
	return &TransferService{
		repo:      repo,
		equipment: equipment,
		users:     users,
		publisher: publisher,
		auditLog:  auditLog,
		log:       log,
	}
}
