package container

import (
	"database/sql"
	"time"

	auditLogRepo "github.com/cpusmsng/vercajch/internal/auditlog"
	"github.com/cpusmsng/vercajch/internal/checkouts"
	"github.com/cpusmsng/vercajch/internal/equipment"
	"github.com/cpusmsng/vercajch/internal/events"
	"github.com/cpusmsng/vercajch/internal/repository"
	"github.com/cpusmsng/vercajch/internal/transfers"
	"github.com/cpusmsng/vercajch/internal/users"
	"github.com/cpusmsng/vercajch/pkg/auditlog"
	"github.com/cpusmsng/vercajch/pkg/security"

	"go.uber.org/zap"
)

const expirySweepInterval = time.Minute

type Container struct {
	Repository       *repository.Repository
	AuditLog         *auditlog.Auditlog
	EventHub         *events.Hub
	LoginHandler     *security.LoginHandler
	EquipmentHandler *equipment.EquipmentHandler
	TransferHandler  *transfers.TransferHandler
	CheckoutHandler  *checkouts.CheckoutHandler
	UserHandler      *users.UsersHandler
	AuditLogHandler  *auditLogRepo.AuditLogHandler
	ExpirySweeper    *transfers.ExpirySweeper
}

func NewAppContainer(db *sql.DB, log *zap.Logger) *Container {
	repo := repository.NewRepository(db)
	auditRepository := auditLogRepo.NewRepository(repo)
	auditLog := auditlog.NewAuditLog(auditRepository)
	hub := events.NewHub(log)

	userRepo := users.NewRepository(repo)
	equipmentRepo := equipment.NewRepository(repo)
	transferRepo := transfers.NewRepository(repo)
	checkoutRepo := checkouts.NewRepository(repo)

	transferService := transfers.NewTransferService(transferRepo, equipmentRepo, userRepo, hub, auditLog, log)
	checkoutService := checkouts.NewCheckoutService(checkoutRepo, equipmentRepo, userRepo, hub, auditLog, log)

	return &Container{
		Repository:       repo,
		AuditLog:         auditLog,
		EventHub:         hub,
		LoginHandler:     security.NewLoginHandler(repo),
		EquipmentHandler: equipment.NewHandler(equipmentRepo),
		TransferHandler:  transfers.NewHandler(transferService),
		CheckoutHandler:  checkouts.NewHandler(checkoutService),
		UserHandler:      users.NewHandler(userRepo),
		AuditLogHandler:  auditLogRepo.NewHandler(auditRepository),
		ExpirySweeper:    transfers.NewExpirySweeper(transferRepo, hub, log, expirySweepInterval),
	}
}
