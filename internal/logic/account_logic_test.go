package logic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/model"
)

func registration(email string, projectId int64) *form.RegistrationForm {
	f := &form.RegistrationForm{
		Email:     email,
		Password:  "secret-pass",
		Passwordb: "secret-pass",
		FirstName: "Jo",
		LastName:  "Doe",
	}
	if projectId != 0 {
		f.GivingProject = itoa(projectId)
	}
	return f
}

func TestRegisterPreApproved(t *testing.T) {
	db := newTestDB(t)
	project := &model.GivingProjectModel{
		Title:               "Rural Justice",
		FundraisingTraining: time.Now().AddDate(0, 0, 7),
		FundraisingDeadline: time.Now().AddDate(0, 2, 0),
		PreApproved:         "jo@example.org, other@example.org",
	}
	require.NoError(t, db.Create(project).Error)

	l := NewAccountLogic(db, testConfig())
	result, errs, err := l.Register(registration("Jo@Example.org", project.Id))
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.NotNil(t, result.Membership)
	assert.True(t, result.Membership.Approved)
	assert.Equal(t, welcomeNotification, result.Membership.Notifications)
	assert.Equal(t, result.Membership.Id, result.Member.Current)
	assert.Equal(t, "jo@example.org", result.User.Email)

	_, _, err = l.Register(registration("jo@example.org", 0))
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestRegisterValidation(t *testing.T) {
	db := newTestDB(t)
	l := NewAccountLogic(db, testConfig())

	f := registration("jo@example.org", 0)
	f.Passwordb = "different"
	_, errs, err := l.Register(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"Passwords did not match."}, errs["passwordb"])

	require.NoError(t, db.Create(&model.UserModel{Email: "org@example.org", PasswordHash: "x", IsActive: true}).Error)
	_, errs, err = l.Register(registration("org@example.org", 0))
	require.NoError(t, err)
	assert.Equal(t, []string{MsgUserExistsNotMember}, errs[form.NonFieldErrors])
}

func TestLoginAndSession(t *testing.T) {
	db := newTestDB(t)
	l := NewAccountLogic(db, testConfig())
	_, _, err := l.Register(registration("jo@example.org", 0))
	require.NoError(t, err)

	_, _, err = l.Login(&form.LoginForm{Email: "jo@example.org", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, errs, err := l.Login(&form.LoginForm{Email: "JO@example.org", Password: "secret-pass"})
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.NotEmpty(t, session.Token)

	user, err := l.SessionUser(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "jo@example.org", user.Email)

	status, ship, err := l.MembershipStatus(user)
	require.NoError(t, err)
	assert.Equal(t, StatusNoMembership, status)
	assert.Nil(t, ship)

	require.NoError(t, l.Logout(session.Token))
	_, err = l.SessionUser(session.Token)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Model(&model.UserModel{}).Where("email = ?", "jo@example.org").Update("is_active", false).Error)
	_, _, err = l.Login(&form.LoginForm{Email: "jo@example.org", Password: "secret-pass"})
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestAddProjectAndSetCurrent(t *testing.T) {
	db := newTestDB(t)
	l := NewAccountLogic(db, testConfig())
	first := seedMembership(t, db, "jo@example.org")
	member := first.Member

	project := &model.GivingProjectModel{
		Title:               "Economic Justice",
		FundraisingTraining: time.Now().AddDate(0, 0, 7),
		FundraisingDeadline: time.Now().AddDate(0, 2, 0),
	}
	require.NoError(t, db.Create(project).Error)

	joinable, err := l.JoinableProjects(member.Id, time.Now())
	require.NoError(t, err)
	require.Len(t, joinable, 1)
	assert.Equal(t, project.Id, joinable[0].Id)

	ship, errs, err := l.AddProject(&member, &form.AddProjectForm{GivingProject: itoa(project.Id)})
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.False(t, ship.Approved)
	assert.Equal(t, ship.Id, member.Current)

	_, _, err = l.AddProject(&member, &form.AddProjectForm{GivingProject: itoa(project.Id)})
	assert.ErrorIs(t, err, ErrAlreadyMember)

	user := &model.UserModel{Email: "jo@example.org"}
	status, _, err := l.MembershipStatus(user)
	require.NoError(t, err)
	assert.Equal(t, StatusNotApproved, status)

	assert.ErrorIs(t, l.SetCurrent(&member, ship.Id), ErrNotFound)
	require.NoError(t, l.SetCurrent(&member, first.Id))

	status, current, err := l.MembershipStatus(user)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, status)
	assert.Equal(t, first.Id, current.Id)
}

func TestRegisteredPreApproval(t *testing.T) {
	db := newTestDB(t)
	l := NewAccountLogic(db, testConfig())
	project := &model.GivingProjectModel{
		Title:               "Rural Justice",
		FundraisingTraining: time.Now().AddDate(0, 0, 7),
		FundraisingDeadline: time.Now().AddDate(0, 2, 0),
	}
	require.NoError(t, db.Create(project).Error)
	result, _, err := l.Register(registration("jo@example.org", project.Id))
	require.NoError(t, err)
	require.False(t, result.Membership.Approved)

	approved, err := l.Registered(result.User)
	require.NoError(t, err)
	assert.False(t, approved)

	require.NoError(t, db.Model(project).Update("pre_approved", "jo@example.org").Error)
	approved, err = l.Registered(result.User)
	require.NoError(t, err)
	assert.True(t, approved)
}

func TestRegisterOrg(t *testing.T) {
	db := newTestDB(t)
	l := NewAccountLogic(db, testConfig())
	f := &form.OrgRegisterForm{Organization: "Fierce Grannies", Email: "fg@example.org", Password: "secret-pass", Passwordb: "secret-pass"}

	org, errs, err := l.RegisterOrg(f)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.NotZero(t, org.Id)

	_, errs, err = l.RegisterOrg(f)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgOrgExists}, errs[form.NonFieldErrors])

	f.Organization = "Other Name"
	_, errs, err = l.RegisterOrg(f)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgEmailExists}, errs[form.NonFieldErrors])

	found, err := l.Organization(&model.UserModel{Email: "fg@example.org"})
	require.NoError(t, err)
	assert.Equal(t, org.Id, found.Id)
}
