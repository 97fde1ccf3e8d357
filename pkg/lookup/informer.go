// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/informers"
	rbacinformers "k8s.io/client-go/informers/rbac/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
)

const (
	// SubjectKindIndex indexes bindings by the normalized kinds of their
	// subjects so kind-filtered lookups skip unrelated bindings.
	SubjectKindIndex = "subjectKind"
)

// SubjectKindIndexFunc extracts the index values for SubjectKindIndex.
// Exported for testing.
func SubjectKindIndexFunc(obj interface{}) ([]string, error) {
	var subjects []rbacv1.Subject
	switch binding := obj.(type) {
	case *rbacv1.RoleBinding:
		subjects = binding.Subjects
	case *rbacv1.ClusterRoleBinding:
		subjects = binding.Subjects
	default:
		return nil, nil
	}

	kinds := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		kind := strings.ToLower(subject.Kind)
		if !slices.Contains(kinds, kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// InformerSource serves bindings from shared informer caches. It is meant for
// long running processes that answer many lookups.
type InformerSource struct {
	factory             informers.SharedInformerFactory
	roleBindings        rbacinformers.RoleBindingInformer
	clusterRoleBindings rbacinformers.ClusterRoleBindingInformer
	synced              atomic.Bool
}

// NewInformerSource registers RoleBinding and ClusterRoleBinding informers
// with SubjectKindIndex on a new shared informer factory.
func NewInformerSource(client kubernetes.Interface, resync time.Duration) (*InformerSource, error) {
	factory := informers.NewSharedInformerFactory(client, resync)
	s := &InformerSource{
		factory:             factory,
		roleBindings:        factory.Rbac().V1().RoleBindings(),
		clusterRoleBindings: factory.Rbac().V1().ClusterRoleBindings(),
	}

	indexers := cache.Indexers{SubjectKindIndex: SubjectKindIndexFunc}
	if err := s.roleBindings.Informer().AddIndexers(indexers); err != nil {
		return nil, fmt.Errorf("failed to add index to RoleBinding informer: %w", err)
	}
	if err := s.clusterRoleBindings.Informer().AddIndexers(indexers); err != nil {
		return nil, fmt.Errorf("failed to add index to ClusterRoleBinding informer: %w", err)
	}
	return s, nil
}

// Start runs the informers until ctx is done.
func (s *InformerSource) Start(ctx context.Context) {
	s.factory.Start(ctx.Done())
}

// WaitForCacheSync blocks until both caches are synced, ctx is done or
// timeout elapses.
func (s *InformerSource) WaitForCacheSync(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for informerType, ok := range s.factory.WaitForCacheSync(ctx.Done()) {
		if !ok {
			return fmt.Errorf("cache for %v did not sync within %s", informerType, timeout)
		}
	}
	s.synced.Store(true)
	return nil
}

// HasSynced reports whether WaitForCacheSync completed successfully.
func (s *InformerSource) HasSynced() bool {
	return s.synced.Load()
}

// RoleBindings returns cached RoleBindings, narrowed by kind when set.
func (s *InformerSource) RoleBindings(_ context.Context, kind string) ([]*rbacv1.RoleBinding, error) {
	if kind == "" {
		return s.roleBindings.Lister().List(labels.Everything())
	}
	objs, err := s.roleBindings.Informer().GetIndexer().ByIndex(SubjectKindIndex, kind)
	if err != nil {
		return nil, err
	}
	roleBindings := make([]*rbacv1.RoleBinding, 0, len(objs))
	for _, obj := range objs {
		if rb, ok := obj.(*rbacv1.RoleBinding); ok {
			roleBindings = append(roleBindings, rb)
		}
	}
	return roleBindings, nil
}

// ClusterRoleBindings returns cached ClusterRoleBindings, narrowed by kind
// when set.
func (s *InformerSource) ClusterRoleBindings(_ context.Context, kind string) ([]*rbacv1.ClusterRoleBinding, error) {
	if kind == "" {
		return s.clusterRoleBindings.Lister().List(labels.Everything())
	}
	objs, err := s.clusterRoleBindings.Informer().GetIndexer().ByIndex(SubjectKindIndex, kind)
	if err != nil {
		return nil, err
	}
	clusterRoleBindings := make([]*rbacv1.ClusterRoleBinding, 0, len(objs))
	for _, obj := range objs {
		if crb, ok := obj.(*rbacv1.ClusterRoleBinding); ok {
			clusterRoleBindings = append(clusterRoleBindings, crb)
		}
	}
	return clusterRoleBindings, nil
}
