package mission_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edu008/HeatQuest/internal/domain/mission"
	"github.com/edu008/HeatQuest/pkg/errors"
)

func newMission(t *testing.T) *mission.Mission {
	t.Helper()
	return mission.New(uuid.New(), uuid.New(), "user-1")
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	m := newMission(t)
	assert.Equal(t, mission.StatusPending, m.Status)
	assert.Equal(t, mission.CompletionPoints, m.Points)
	assert.Nil(t, m.CompletedAt)
}

func TestTransition_HappyPath(t *testing.T) {
	t.Parallel()

	m := newMission(t)
	require.NoError(t, m.Transition(mission.StatusActive))
	require.NoError(t, m.Transition(mission.StatusCompleted))

	assert.Equal(t, mission.StatusCompleted, m.Status)
	require.NotNil(t, m.CompletedAt)
}

func TestTransition_Illegal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		from mission.Status
		to   mission.Status
	}{
		{"pending to completed", mission.StatusPending, mission.StatusCompleted},
		{"completed is terminal", mission.StatusCompleted, mission.StatusActive},
		{"cancelled is terminal", mission.StatusCancelled, mission.StatusPending},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := newMission(t)
			m.Status = tc.from
			err := m.Transition(tc.to)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeMissionInvalidState))
		})
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	t.Parallel()

	m := newMission(t)
	err := m.Transition(mission.Status("archived"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissionInvalidState))
}

func TestTransition_CancelFromEitherOpenState(t *testing.T) {
	t.Parallel()

	m1 := newMission(t)
	require.NoError(t, m1.Transition(mission.StatusCancelled))

	m2 := newMission(t)
	require.NoError(t, m2.Transition(mission.StatusActive))
	require.NoError(t, m2.Transition(mission.StatusCancelled))
}
