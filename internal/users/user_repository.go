package users

import (
	"fmt"

	"github.com/cpusmsng/vercajch/internal/repository"
	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type UserRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *UserRepository {
	return &UserRepository{repository: r}
}

func (r *UserRepository) GetUser(userID int) (*models.User, error) {
	var user models.User

	query := r.repository.GoquDBWrapper.
		Select("id", "username", "fullname", "role", "manager_id", "active").
		From("users").
		Where(goqu.Ex{"id": userID})

	found, err := query.Executor().ScanStruct(&user)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &user, nil
}

func (r *UserRepository) GetUsers() (*[]models.User, error) {
	var users []models.User

	query := r.repository.GoquDBWrapper.
		Select("id", "username", "fullname", "role", "manager_id", "active").
		From("users").
		Order(goqu.I("username").Asc())

	if err := query.Executor().ScanStructs(&users); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return &users, nil
}

// TeamMemberIDs returns the leader's own ID plus everyone reporting to
// them. Approval scoping uses this set.
func (r *UserRepository) TeamMemberIDs(leaderID int) ([]int, error) {
	var ids []int

	query := r.repository.GoquDBWrapper.
		Select("id").
		From("users").
		Where(goqu.Or(
			goqu.C("id").Eq(leaderID),
			goqu.C("manager_id").Eq(leaderID),
		))

	if err := query.Executor().ScanVals(&ids); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return ids, nil
}

// IsTeamMember reports whether userID is the leader themselves or managed
// by them.
func (r *UserRepository) IsTeamMember(leaderID, userID int) (bool, error) {
	if leaderID == userID {
		return true, nil
	}

	var count int
	query := r.repository.GoquDBWrapper.
		From("users").
		Select(goqu.COUNT("id")).
		Where(goqu.Ex{"id": userID, "manager_id": leaderID})

	if _, err := query.Executor().ScanVal(&count); err != nil {
		return false, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return count > 0, nil
}
