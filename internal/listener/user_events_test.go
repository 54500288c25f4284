package listener

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deactivatorStub struct {
	teachers []string
	err      error
}

func (d *deactivatorStub) DeactivateForTeacher(_ context.Context, teacherID string) (int, error) {
	d.teachers = append(d.teachers, teacherID)
	return 2, d.err
}

type forgetterStub struct {
	forgotten []string
}

func (f *forgetterStub) Forget(_ context.Context, userID string) {
	f.forgotten = append(f.forgotten, userID)
}

func TestHandleMessageDeactivatesTeachers(t *testing.T) {
	templates := &deactivatorStub{}
	admins := &forgetterStub{}
	l := NewUserEventListener(nil, "", templates, admins, nil)
	assert.Equal(t, DefaultUserDeletedChannel, l.channel)

	require.NoError(t, l.HandleMessage(context.Background(), `{"user_id":"t1","role":"TEACHER"}`))
	require.NoError(t, l.HandleMessage(context.Background(), `{"user_id":"s1","role":"STUDENT"}`))

	assert.Equal(t, []string{"t1"}, templates.teachers)
	assert.Equal(t, []string{"t1", "s1"}, admins.forgotten)
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
	templates := &deactivatorStub{}
	l := NewUserEventListener(nil, "users.deleted", templates, nil, nil)

	assert.Error(t, l.HandleMessage(context.Background(), `not-json`))
	assert.Error(t, l.HandleMessage(context.Background(), `{"role":"TEACHER"}`))
	assert.Empty(t, templates.teachers)

	templates.err = errors.New("db down")
	err := l.HandleMessage(context.Background(), `{"user_id":"t9","role":"TEACHER"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t9")
}

func TestRunRequiresRedis(t *testing.T) {
	l := NewUserEventListener(nil, "", &deactivatorStub{}, nil, nil)
	assert.Error(t, l.Run(context.Background()))
}
