package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/relawan-api/internal/rbac"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, "Relawan API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "id", cfg.NotificationLocale)
	require.Equal(t, []string{ChannelDatabase}, cfg.NotificationChannels)
	require.Equal(t, 30*time.Second, cfg.StreamKeepAlive)
	require.Equal(t, "kunjungan_koordinator|superadmin", cfg.Access.VisitReview)
	require.Equal(t, "", cfg.Access.VisitRead)
	require.Equal(t, "superadmin", cfg.Access.AuditRead)
}

func TestFromViperRequiresSecret(t *testing.T) {
	_, err := fromViper(viper.New())
	require.Error(t, err)
}

func TestFromViperChannels(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("redis.url", "redis://localhost:6379/0")
	v.Set("notification.channels", "database, Redis,redis")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, []string{ChannelDatabase, ChannelRedis}, cfg.NotificationChannels)
	require.True(t, cfg.ChannelEnabled(ChannelRedis))
	require.False(t, cfg.ChannelEnabled(ChannelNATS))
}

func TestFromViperRejectsMisconfiguredChannels(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("notification.channels", "nats")
	_, err := fromViper(v)
	require.Error(t, err)

	v.Set("notification.channels", "sms")
	_, err = fromViper(v)
	require.Error(t, err)
}

func TestFromViperInvalidDuration(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")
	v.Set("notification.keepalive", "soon")
	_, err := fromViper(v)
	require.Error(t, err)
}

func TestReviewerRolesFollowVisitReviewRule(t *testing.T) {
	v := viper.New()
	v.Set("jwt.secret", "secret")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, rbac.RoleSet{rbac.RoleKunjunganKoordinator, rbac.RoleSuperadmin}, cfg.Access.ReviewerRoles())

	v.Set("access.visit_review", "2, kunjungan_koordinator")
	cfg, err = fromViper(v)
	require.NoError(t, err)
	require.Equal(t, rbac.RoleSet{rbac.RoleAdminPaslon, rbac.RoleKunjunganKoordinator}, cfg.Access.ReviewerRoles())
}
