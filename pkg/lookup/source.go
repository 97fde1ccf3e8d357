// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"context"
	"fmt"

	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/pager"

	"github.com/telekom/rbac-lookup/pkg/metrics"
)

// DefaultChunkSize is the page size used when listing bindings from the API.
const DefaultChunkSize = 500

// BindingSource provides the bindings a Lister inverts. kind is the
// normalized subject kind filter; sources may use it to narrow the result
// but are free to ignore it. Returned objects must not be modified.
type BindingSource interface {
	RoleBindings(ctx context.Context, kind string) ([]*rbacv1.RoleBinding, error)
	ClusterRoleBindings(ctx context.Context, kind string) ([]*rbacv1.ClusterRoleBinding, error)
}

// APISource lists bindings directly from the Kubernetes API in pages.
type APISource struct {
	client    kubernetes.Interface
	chunkSize int64
}

// NewAPISource returns an APISource that lists chunkSize objects per request.
// A chunkSize of zero or less uses DefaultChunkSize.
func NewAPISource(client kubernetes.Interface, chunkSize int64) *APISource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &APISource{client: client, chunkSize: chunkSize}
}

// RoleBindings lists RoleBindings across all namespaces.
func (s *APISource) RoleBindings(ctx context.Context, _ string) ([]*rbacv1.RoleBinding, error) {
	var roleBindings []*rbacv1.RoleBinding
	p := pager.New(pager.SimplePageFunc(func(opts metav1.ListOptions) (runtime.Object, error) {
		return s.client.RbacV1().RoleBindings(metav1.NamespaceAll).List(ctx, opts)
	}))
	p.PageSize = s.chunkSize

	err := p.EachListItem(ctx, metav1.ListOptions{}, func(obj runtime.Object) error {
		rb, ok := obj.(*rbacv1.RoleBinding)
		if !ok {
			return fmt.Errorf("unexpected object %T in RoleBinding list", obj)
		}
		roleBindings = append(roleBindings, rb)
		return nil
	})
	if err != nil {
		metrics.APIListErrors.WithLabelValues(metrics.ResourceRoleBinding).Inc()
		return nil, err
	}
	return roleBindings, nil
}

// ClusterRoleBindings lists all ClusterRoleBindings.
func (s *APISource) ClusterRoleBindings(ctx context.Context, _ string) ([]*rbacv1.ClusterRoleBinding, error) {
	var clusterRoleBindings []*rbacv1.ClusterRoleBinding
	p := pager.New(pager.SimplePageFunc(func(opts metav1.ListOptions) (runtime.Object, error) {
		return s.client.RbacV1().ClusterRoleBindings().List(ctx, opts)
	}))
	p.PageSize = s.chunkSize

	err := p.EachListItem(ctx, metav1.ListOptions{}, func(obj runtime.Object) error {
		crb, ok := obj.(*rbacv1.ClusterRoleBinding)
		if !ok {
			return fmt.Errorf("unexpected object %T in ClusterRoleBinding list", obj)
		}
		clusterRoleBindings = append(clusterRoleBindings, crb)
		return nil
	})
	if err != nil {
		metrics.APIListErrors.WithLabelValues(metrics.ResourceClusterRoleBinding).Inc()
		return nil, err
	}
	return clusterRoleBindings, nil
}
