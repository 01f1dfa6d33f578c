package iamroles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"eks-backup/src/arn"
	"eks-backup/src/awsapi"
)

// settleDelay is the fixed grace period after creating an IAM resource
// before its ARN is handed to dependent services. IAM is eventually
// consistent; a freshly created role is not immediately usable.
const settleDelay = 10 * time.Second

// Sleeper blocks for d or until ctx is cancelled. Injected so tests skip
// the settle delay.
type Sleeper func(ctx context.Context, d time.Duration) error

func systemSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Resolver performs idempotent find-or-create resolution of IAM roles and
// their instance-profile bindings. It never deletes or mutates an existing
// role: a role matching the expected name is reused verbatim.
type Resolver struct {
	identity awsapi.IdentityService
	log      *zap.Logger
	sleep    Sleeper
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSleeper replaces the settle-delay sleeper, for tests.
func WithSleeper(s Sleeper) Option {
	return func(r *Resolver) { r.sleep = s }
}

// New returns a Resolver over the given identity service.
func New(identity awsapi.IdentityService, log *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{identity: identity, log: log, sleep: systemSleep}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure resolves the role of the given name and kind, creating it with the
// kind's fixed trust policy and policy attachments when absent. Callers must
// treat the returned ARN as subject to the identity backend's eventual
// consistency; Ensure already waits the settle delay after any creation.
func (r *Resolver) Ensure(ctx context.Context, name string, kind Kind) (string, error) {
	if name == "" {
		name = kind.DefaultName()
	}

	role, err := r.identity.GetRole(ctx, name)
	if err == nil {
		r.log.Debug("role exists, reusing",
			zap.String("role", name),
			zap.String("kind", kind.String()))
		if kind.NeedsInstanceProfile() {
			if _, err := r.ensureInstanceProfile(ctx, name); err != nil {
				return "", err
			}
		}
		return role.Arn, nil
	}
	var nf *awsapi.NotFoundError
	if !errors.As(err, &nf) {
		return "", fmt.Errorf("looking up role %s: %w", name, err)
	}

	r.log.Info("creating role",
		zap.String("role", name),
		zap.String("kind", kind.String()))
	role, err = r.identity.CreateRole(ctx, name,
		fmt.Sprintf("%s role for EKS disaster-recovery testing", kind),
		kind.TrustPolicy())
	if err != nil {
		return "", fmt.Errorf("creating role %s: %w", name, err)
	}

	for _, policy := range kind.ManagedPolicies() {
		if err := r.identity.AttachRolePolicy(ctx, name, arn.ManagedPolicyARN(policy)); err != nil {
			return "", err
		}
	}

	if inline := kind.InlinePolicies(accountFromRoleArn(role.Arn)); len(inline) > 0 {
		for policyName, doc := range inline {
			if err := r.identity.PutRolePolicy(ctx, name, policyName, doc); err != nil {
				return "", err
			}
		}
	}

	if kind.NeedsInstanceProfile() {
		if _, err := r.ensureInstanceProfile(ctx, name); err != nil {
			return "", err
		}
	}

	r.log.Debug("waiting for IAM to settle",
		zap.String("role", name),
		zap.Duration("delay", settleDelay))
	if err := r.sleep(ctx, settleDelay); err != nil {
		return "", err
	}
	return role.Arn, nil
}

// EnsureDefaults resolves every kind in ks under its conventional name and
// returns kind -> ARN.
func (r *Resolver) EnsureDefaults(ctx context.Context, ks []Kind) (map[Kind]string, error) {
	arns := make(map[Kind]string, len(ks))
	for _, k := range ks {
		roleArn, err := r.Ensure(ctx, "", k)
		if err != nil {
			return nil, err
		}
		arns[k] = roleArn
	}
	return arns, nil
}

// ensureInstanceProfile makes sure a same-named instance profile exists and
// has the role bound. Both steps are check-then-create.
func (r *Resolver) ensureInstanceProfile(ctx context.Context, name string) (string, error) {
	profile, err := r.identity.GetInstanceProfile(ctx, name)
	if err != nil {
		var nf *awsapi.NotFoundError
		if !errors.As(err, &nf) {
			return "", fmt.Errorf("looking up instance profile %s: %w", name, err)
		}
		r.log.Info("creating instance profile", zap.String("profile", name))
		profile, err = r.identity.CreateInstanceProfile(ctx, name)
		if err != nil {
			return "", fmt.Errorf("creating instance profile %s: %w", name, err)
		}
	}

	for _, bound := range profile.RoleNames {
		if bound == name {
			return profile.Arn, nil
		}
	}
	if err := r.identity.AddRoleToInstanceProfile(ctx, name, name); err != nil {
		return "", err
	}
	return profile.Arn, nil
}

func accountFromRoleArn(roleArn string) string {
	a, err := arn.Parse(roleArn)
	if err != nil {
		return ""
	}
	return a.AccountID
}
