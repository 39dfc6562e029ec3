package repository

import (
	"context"
	"testing"
	"time"

	licensedomain "github.com/smallbiznis/dunning/internal/license/domain"
	"github.com/smallbiznis/dunning/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkTransitionsMirrorSubscription(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	today := testutil.Date(2024, 2, 1)
	fx := testutil.NewFixtures(t, db, today)
	r := Provide()

	c := fx.Customer()
	p := fx.Plan("20", "month")
	s := fx.Subscription(c.ID, p.ID, testutil.Date(2024, 1, 1), today)
	active := fx.License(s.ID, licensedomain.LicenseStatusActive)
	revoked := fx.License(s.ID, licensedomain.LicenseStatusRevoked)

	n, err := r.SuspendActive(ctx, db, s.ID, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = r.SuspendActive(ctx, db, s.ID, today)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.RestoreSuspended(ctx, db, s.ID, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = r.RevokeAll(ctx, db, s.ID, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = r.RestoreSuspended(ctx, db, s.ID, today)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := r.FindByID(ctx, db, active.ID)
	require.NoError(t, err)
	assert.Equal(t, licensedomain.LicenseStatusRevoked, got.Status)
	require.NotNil(t, got.RevokedAt)

	got, err = r.FindByID(ctx, db, revoked.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RevokedAt)
}

func TestNoticeCandidatesWindow(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	today := testutil.Date(2024, 6, 1)
	fx := testutil.NewFixtures(t, db, today)
	r := Provide()

	c := fx.Customer()
	p := fx.Plan("20", "year")
	s := fx.Subscription(c.ID, p.ID, testutil.Date(2024, 1, 1), testutil.Date(2025, 1, 1))
	target := today.AddDate(0, 0, 30)
	onTarget := fx.License(s.ID, licensedomain.LicenseStatusActive, func(l *licensedomain.License) {
		l.ExpiresAt = testutil.Ptr(target.Add(15 * time.Hour))
	})
	fx.License(s.ID, licensedomain.LicenseStatusActive, func(l *licensedomain.License) {
		l.ExpiresAt = testutil.Ptr(target.AddDate(0, 0, 1))
	})
	expired := fx.License(s.ID, licensedomain.LicenseStatusActive, func(l *licensedomain.License) {
		l.ExpiresAt = testutil.Ptr(today.AddDate(0, 0, -40))
	})

	items, err := r.ListNoticeCandidates(ctx, db, licensedomain.NoticeFirst, &target, target.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, onTarget.ID, items[0].ID)

	items, err = r.ListNoticeCandidates(ctx, db, licensedomain.NoticeExpired, nil, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, expired.ID, items[0].ID)

	ok, err := r.ClaimNotice(ctx, db, expired.ID, licensedomain.NoticeExpired, today)
	require.NoError(t, err)
	assert.True(t, ok)

	items, err = r.ListNoticeCandidates(ctx, db, licensedomain.NoticeExpired, nil, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, r.ReleaseNotice(ctx, db, expired.ID, licensedomain.NoticeExpired))
	items, err = r.ListNoticeCandidates(ctx, db, licensedomain.NoticeExpired, nil, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = r.ClaimNotice(ctx, db, expired.ID, licensedomain.NoticeKind("late"), today)
	assert.ErrorIs(t, err, licensedomain.ErrUnknownNoticeKind)
}
