// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/cloudresourcemanager/v1"
	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/telekom/rbac-lookup/pkg/helpers"
	"github.com/telekom/rbac-lookup/pkg/metrics"
	"github.com/telekom/rbac-lookup/pkg/tracing"
)

// Lister resolves the roles held by the subjects a Matcher selects.
// A Lister is not safe for concurrent use; build one per lookup.
type Lister struct {
	source  BindingSource
	matcher *Matcher

	// GKE adds GCP IAM project roles when set.
	GKE *GKEPolicyLoader

	Log    logr.Logger
	Tracer trace.Tracer

	subjects map[string]*Subject
}

// NewLister returns a Lister reading from source. A nil matcher matches
// everything.
func NewLister(source BindingSource, matcher *Matcher, log logr.Logger) *Lister {
	if matcher == nil {
		matcher = &Matcher{}
	}
	return &Lister{
		source:   source,
		matcher:  matcher,
		Log:      log,
		Tracer:   tracing.Noop(),
		subjects: make(map[string]*Subject),
	}
}

// Load fetches all bindings and records the matching subjects. RoleBindings
// and ClusterRoleBindings are fetched concurrently; the GKE IAM policy is
// loaded afterwards when configured.
func (l *Lister) Load(ctx context.Context) error {
	start := time.Now()
	ctx, span := l.Tracer.Start(ctx, "lookup.Load", trace.WithAttributes(
		tracing.AttrQuery.String(l.matcher.Pattern()),
		tracing.AttrSubjectKind.String(l.matcher.Kind()),
		tracing.AttrNamespace.String(l.matcher.Namespace()),
	))
	defer span.End()

	err := l.load(ctx)
	metrics.LookupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LookupsTotal.WithLabelValues(metrics.ResultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, subject := range l.subjects {
		subject.sortRoles()
	}

	metrics.LookupsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.SubjectsMatched.Observe(float64(len(l.subjects)))
	span.SetAttributes(tracing.AttrSubjectCount.Int(len(l.subjects)))
	l.Log.V(1).Info("lookup complete", "subjects", len(l.subjects), "duration", time.Since(start))
	return nil
}

func (l *Lister) load(ctx context.Context) error {
	var roleBindings []*rbacv1.RoleBinding
	var clusterRoleBindings []*rbacv1.ClusterRoleBinding

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roleBindings, err = l.fetchRoleBindings(gctx)
		if err != nil {
			return fmt.Errorf("loading role bindings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		clusterRoleBindings, err = l.fetchClusterRoleBindings(gctx)
		if err != nil {
			return fmt.Errorf("loading cluster role bindings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, roleBinding := range roleBindings {
		l.addRoleBinding(roleBinding)
	}
	for _, clusterRoleBinding := range clusterRoleBindings {
		l.addClusterRoleBinding(clusterRoleBinding)
	}

	if l.GKE != nil {
		ctx, span := l.Tracer.Start(ctx, "lookup.LoadIAMPolicy")
		defer span.End()

		policy, project, err := l.GKE.LoadPolicy(ctx)
		if err != nil {
			return fmt.Errorf("loading GKE IAM policy: %w", err)
		}
		span.SetAttributes(tracing.AttrProject.String(project))
		l.addIAMPolicy(policy)
	}

	return nil
}

func (l *Lister) fetchRoleBindings(ctx context.Context) ([]*rbacv1.RoleBinding, error) {
	ctx, span := l.Tracer.Start(ctx, "lookup.ListRoleBindings",
		trace.WithAttributes(tracing.AttrResourceType.String(metrics.ResourceRoleBinding)))
	defer span.End()

	roleBindings, err := l.source.RoleBindings(ctx, l.matcher.Kind())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(tracing.AttrBindingCount.Int(len(roleBindings)))
	metrics.BindingsScanned.WithLabelValues(metrics.ResourceRoleBinding).Add(float64(len(roleBindings)))
	l.Log.V(2).Info("role bindings fetched", "count", len(roleBindings))
	return roleBindings, nil
}

func (l *Lister) fetchClusterRoleBindings(ctx context.Context) ([]*rbacv1.ClusterRoleBinding, error) {
	ctx, span := l.Tracer.Start(ctx, "lookup.ListClusterRoleBindings",
		trace.WithAttributes(tracing.AttrResourceType.String(metrics.ResourceClusterRoleBinding)))
	defer span.End()

	clusterRoleBindings, err := l.source.ClusterRoleBindings(ctx, l.matcher.Kind())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(tracing.AttrBindingCount.Int(len(clusterRoleBindings)))
	metrics.BindingsScanned.WithLabelValues(metrics.ResourceClusterRoleBinding).Add(float64(len(clusterRoleBindings)))
	l.Log.V(2).Info("cluster role bindings fetched", "count", len(clusterRoleBindings))
	return clusterRoleBindings, nil
}

func (l *Lister) addRoleBinding(roleBinding *rbacv1.RoleBinding) {
	scope := roleBinding.Namespace
	if !l.matcher.MatchScope(scope) {
		return
	}
	role := SimpleRole{
		Kind: roleBinding.RoleRef.Kind,
		Name: roleBinding.RoleRef.Name,
		Source: RoleSource{
			Kind: SourceKindRoleBinding,
			Name: roleBinding.Name,
		},
	}
	for _, subject := range roleBinding.Subjects {
		l.addKubernetesSubject(subject, scope, role)
	}
}

func (l *Lister) addClusterRoleBinding(clusterRoleBinding *rbacv1.ClusterRoleBinding) {
	role := SimpleRole{
		Kind: clusterRoleBinding.RoleRef.Kind,
		Name: clusterRoleBinding.RoleRef.Name,
		Source: RoleSource{
			Kind: SourceKindClusterRoleBinding,
			Name: clusterRoleBinding.Name,
		},
	}
	for _, subject := range clusterRoleBinding.Subjects {
		l.addKubernetesSubject(subject, ScopeClusterWide, role)
	}
}

func (l *Lister) addKubernetesSubject(subject rbacv1.Subject, scope string, role SimpleRole) {
	if !l.matcher.MatchName(subject.Name) || !l.matcher.MatchKind(subject.Kind) {
		return
	}
	l.subject(helpers.SubjectKey(subject), subject.Kind, subject.Name, subject.Namespace).addRole(scope, role)
}

func (l *Lister) addIAMPolicy(policy *cloudresourcemanager.Policy) {
	if policy == nil || !l.matcher.MatchScope(ScopeProjectWide) {
		return
	}
	metrics.BindingsScanned.WithLabelValues(metrics.ResourceIAMBinding).Add(float64(len(policy.Bindings)))
	for _, binding := range policy.Bindings {
		role, ok := gkeIAMRole(binding.Role)
		if !ok {
			continue
		}
		for _, member := range binding.Members {
			kind, name, ok := helpers.ParseIAMMember(member)
			if !ok {
				l.Log.V(2).Info("skipping IAM member", "member", member, "role", binding.Role)
				continue
			}
			if !l.matcher.MatchName(name) || !l.matcher.MatchKind(kind) {
				continue
			}
			l.subject(name, kind, name, "").addRole(ScopeProjectWide, role)
		}
	}
}

// subjectID identifies a tracked subject. Users and groups are keyed by name
// alone, so the kind keeps a User and a Group with the same name apart.
func subjectID(kind, key string) string {
	return strings.ToLower(kind) + "/" + key
}

func (l *Lister) subject(key, kind, name, namespace string) *Subject {
	id := subjectID(kind, key)
	s, ok := l.subjects[id]
	if !ok {
		s = newSubject(key, kind, name, namespace)
		l.subjects[id] = s
	}
	return s
}

// Subjects returns the loaded subjects sorted by key, then kind.
func (l *Lister) Subjects() []*Subject {
	subjects := make([]*Subject, 0, len(l.subjects))
	for _, subject := range l.subjects {
		subjects = append(subjects, subject)
	}
	slices.SortFunc(subjects, func(a, b *Subject) int {
		return cmp.Or(
			strings.Compare(a.Key(), b.Key()),
			strings.Compare(a.Kind, b.Kind),
		)
	})
	return subjects
}

// Subject returns the subject of the given kind tracked under key. kind is
// compared case-insensitively.
func (l *Lister) Subject(kind, key string) (*Subject, bool) {
	s, ok := l.subjects[subjectID(kind, key)]
	return s, ok
}

// Grants flattens the loaded subjects into sorted (subject, role, scope)
// triples. The result is never nil.
func (l *Lister) Grants() []Grant {
	grants := []Grant{}
	for _, subject := range l.subjects {
		for scope, roles := range subject.RolesByScope {
			for _, role := range roles {
				grants = append(grants, Grant{
					SubjectKind: subject.Kind,
					Subject:     subject.Key(),
					Scope:       scope,
					RoleKind:    role.Kind,
					RoleName:    role.Name,
					SourceKind:  role.Source.Kind,
					SourceName:  role.Source.Name,
				})
			}
		}
	}
	slices.SortFunc(grants, compareGrants)
	return grants
}
