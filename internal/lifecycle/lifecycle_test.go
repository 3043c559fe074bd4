package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Gopika0263/donation-api/internal/models"
	appErrors "github.com/Gopika0263/donation-api/pkg/errors"
)

func donorClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleDonor}
}

func receiverClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleReceiver}
}

func TestTransitionTableSingleStepForward(t *testing.T) {
	for action, rule := range rules {
		require.True(t, CanTransition(rule.From, rule.To), "action %s must move one step forward", action)
		require.Equal(t, order[rule.From]+1, order[rule.To])
	}
}

func TestNextFollowsFixedOrder(t *testing.T) {
	sequence := []models.DonationStatus{
		models.StatusAvailable,
		models.StatusClaimed,
		models.StatusPickedUp,
		models.StatusDelivered,
		models.StatusCompleted,
	}
	for i := 0; i < len(sequence)-1; i++ {
		next, ok := Next(sequence[i])
		require.True(t, ok)
		require.Equal(t, sequence[i+1], next)
	}
	_, ok := Next(models.StatusCompleted)
	require.False(t, ok)
	require.True(t, IsTerminal(models.StatusCompleted))
}

func TestCanTransitionRejectsSkipsAndBackwards(t *testing.T) {
	require.False(t, CanTransition(models.StatusAvailable, models.StatusPickedUp))
	require.False(t, CanTransition(models.StatusClaimed, models.StatusAvailable))
	require.False(t, CanTransition(models.StatusDelivered, models.StatusClaimed))
	require.False(t, CanTransition(models.StatusCompleted, models.StatusAvailable))
}

func TestAuthorizeClaimWrongStateFailsRegardlessOfRole(t *testing.T) {
	receiverID := "recv-1"
	donation := &models.Donation{ID: "don-1", DonorID: "donor-1", ReceiverID: &receiverID, Status: models.StatusClaimed}

	for _, claims := range []*models.JWTClaims{
		receiverClaims("recv-2"),
		donorClaims("donor-1"),
		{UserID: "admin-1", Role: models.RoleAdmin},
	} {
		_, err := Authorize(ActionClaim, claims, donation)
		require.Error(t, err)
		require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	}
}

func TestAuthorizeOwnershipBeatsStatePrecondition(t *testing.T) {
	receiverID := "recv-1"
	donation := &models.Donation{ID: "don-1", DonorID: "donor-1", ReceiverID: &receiverID, Status: models.StatusClaimed}

	// state precondition holds, but the caller is not the owning donor
	_, err := Authorize(ActionPickup, donorClaims("donor-2"), donation)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthorizeCompleteRequiresClaimingReceiver(t *testing.T) {
	receiverID := "recv-1"
	donation := &models.Donation{ID: "don-1", DonorID: "donor-1", ReceiverID: &receiverID, Status: models.StatusDelivered}

	_, err := Authorize(ActionComplete, receiverClaims("recv-2"), donation)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	rule, err := Authorize(ActionComplete, receiverClaims("recv-1"), donation)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, rule.To)
}

func TestAuthorizeWrongRole(t *testing.T) {
	donation := &models.Donation{ID: "don-1", DonorID: "donor-1", Status: models.StatusAvailable}

	_, err := Authorize(ActionClaim, donorClaims("donor-1"), donation)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthorizeNilClaims(t *testing.T) {
	donation := &models.Donation{ID: "don-1", DonorID: "donor-1", Status: models.StatusAvailable}

	_, err := Authorize(ActionClaim, nil, donation)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAdminOverrideTargets(t *testing.T) {
	require.True(t, AdminOverrideAllowed(models.StatusDelivered))
	require.True(t, AdminOverrideAllowed(models.StatusCompleted))
	require.False(t, AdminOverrideAllowed(models.StatusAvailable))
	require.False(t, AdminOverrideAllowed(models.StatusClaimed))
	require.False(t, AdminOverrideAllowed(models.StatusPickedUp))
}
