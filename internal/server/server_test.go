// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	"sigs.k8s.io/yaml"

	"github.com/telekom/rbac-lookup/internal/server"
	"github.com/telekom/rbac-lookup/pkg/lookup"
	"github.com/telekom/rbac-lookup/pkg/tracing"
)

func testBindings() []runtime.Object {
	return []runtime.Object{
		&rbacv1.RoleBinding{
			ObjectMeta: metav1.ObjectMeta{Name: "editors", Namespace: "team-a"},
			Subjects: []rbacv1.Subject{
				{Kind: rbacv1.UserKind, Name: "joe", APIGroup: rbacv1.GroupName},
				{Kind: rbacv1.ServiceAccountKind, Name: "deployer", Namespace: "ci"},
			},
			RoleRef: rbacv1.RoleRef{Kind: "Role", Name: "editor", APIGroup: rbacv1.GroupName},
		},
		&rbacv1.ClusterRoleBinding{
			ObjectMeta: metav1.ObjectMeta{Name: "viewers"},
			Subjects: []rbacv1.Subject{
				{Kind: rbacv1.UserKind, Name: "joe", APIGroup: rbacv1.GroupName},
				{Kind: rbacv1.GroupKind, Name: "devs", APIGroup: rbacv1.GroupName},
			},
			RoleRef: rbacv1.RoleRef{Kind: "ClusterRole", Name: "view", APIGroup: rbacv1.GroupName},
		},
	}
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeGrants(rec *httptest.ResponseRecorder) []lookup.Grant {
	var grants []lookup.Grant
	ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &grants)).To(Succeed())
	return grants
}

var _ = Describe("Lookup server", func() {
	var (
		client  *fake.Clientset
		synced  bool
		handler http.Handler
	)

	BeforeEach(func() {
		client = fake.NewClientset(testBindings()...)
		synced = true
		handler = server.New(lookup.NewAPISource(client, 0), func() bool { return synced }, testLog, server.Options{
			RequestsPerSecond: 1000,
			Burst:             1000,
		}).Handler()
	})

	Context("health endpoints", func() {
		It("reports healthy", func() {
			rec := get(handler, "/healthz")
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = get(handler, "/healthz/ping")
			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("reports ready only once caches are synced", func() {
			synced = false
			Expect(get(handler, "/readyz").Code).To(Equal(http.StatusInternalServerError))

			synced = true
			Expect(get(handler, "/readyz").Code).To(Equal(http.StatusOK))
			Expect(get(handler, "/readyz/informers").Code).To(Equal(http.StatusOK))
		})
	})

	Context("/lookup", func() {
		It("refuses lookups until caches are synced", func() {
			synced = false
			rec := get(handler, "/lookup?subject=joe")
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(rec.Header().Get("Retry-After")).NotTo(BeEmpty())
			Expect(rec.Body.String()).To(ContainSubstring("not synced"))

			synced = true
			Expect(decodeGrants(get(handler, "/lookup?subject=joe"))).To(HaveLen(2))
		})

		It("refuses lookups from an informer source that has not synced", func() {
			source, err := lookup.NewInformerSource(client, 0)
			Expect(err).NotTo(HaveOccurred())
			unsynced := server.New(source, source.HasSynced, testLog, server.Options{}).Handler()

			rec := get(unsynced, "/lookup?subject=joe")
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(rec.Body.String()).NotTo(Equal("[]\n"))
		})

		It("returns all grants as JSON by default", func() {
			rec := get(handler, "/lookup")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			grants := decodeGrants(rec)
			Expect(grants).To(HaveLen(4))
			Expect(grants[0].Subject).To(Equal("ci:deployer"))
		})

		It("filters by subject and kind", func() {
			rec := get(handler, "/lookup?subject=jo&kind=user")
			Expect(rec.Code).To(Equal(http.StatusOK))

			grants := decodeGrants(rec)
			Expect(grants).To(ConsistOf(
				lookup.Grant{
					SubjectKind: rbacv1.UserKind, Subject: "joe", Scope: lookup.ScopeClusterWide,
					RoleKind: "ClusterRole", RoleName: "view",
					SourceKind: lookup.SourceKindClusterRoleBinding, SourceName: "viewers",
				},
				lookup.Grant{
					SubjectKind: rbacv1.UserKind, Subject: "joe", Scope: "team-a",
					RoleKind: "Role", RoleName: "editor",
					SourceKind: lookup.SourceKindRoleBinding, SourceName: "editors",
				},
			))
		})

		It("filters by namespace keeping cluster-wide grants", func() {
			grants := decodeGrants(get(handler, "/lookup?namespace=other"))
			for _, grant := range grants {
				Expect(grant.Scope).To(Equal(lookup.ScopeClusterWide))
			}
			Expect(grants).To(HaveLen(2))
		})

		It("supports regular expressions", func() {
			grants := decodeGrants(get(handler, "/lookup?subject=%5Edev&regex=true"))
			Expect(grants).To(HaveLen(1))
			Expect(grants[0].Subject).To(Equal("devs"))
		})

		It("renders YAML on request", func() {
			rec := get(handler, "/lookup?subject=devs&output=yaml")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/yaml"))

			var grants []lookup.Grant
			Expect(yaml.Unmarshal(rec.Body.Bytes(), &grants)).To(Succeed())
			Expect(grants).To(HaveLen(1))
			Expect(grants[0].RoleName).To(Equal("view"))
		})

		It("renders tables on request", func() {
			rec := get(handler, "/lookup?subject=nobody&output=normal")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal(lookup.NoBindingsMessage + "\n"))
		})

		DescribeTable("rejects invalid queries",
			func(target string) {
				rec := get(handler, target)
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(rec.Body.String()).To(ContainSubstring(`"error"`))
			},
			Entry("unknown kind", "/lookup?kind=robot"),
			Entry("unknown output", "/lookup?output=xml"),
			Entry("malformed regex flag", "/lookup?regex=maybe"),
			Entry("invalid regular expression", "/lookup?subject=%5B&regex=true"),
		)

		It("traces lookups as part of the caller's trace", func() {
			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			DeferCleanup(tp.Shutdown)
			handler = server.New(lookup.NewAPISource(client, 0), func() bool { return true }, testLog, server.Options{
				RequestsPerSecond: 1000,
				Burst:             1000,
				Tracer:            tp.Tracer("test"),
			}).Handler()

			req := httptest.NewRequest(http.MethodGet, "/lookup?subject=joe&output=wide", nil)
			req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var lookupSpan sdktrace.ReadOnlySpan
			for _, span := range recorder.Ended() {
				if span.Name() == "server.Lookup" {
					lookupSpan = span
				}
			}
			Expect(lookupSpan).NotTo(BeNil())
			Expect(lookupSpan.SpanContext().TraceID().String()).To(Equal("4bf92f3577b34da6a3ce929d0e0e4736"))
			Expect(lookupSpan.Parent().SpanID().String()).To(Equal("00f067aa0ba902b7"))
			Expect(lookupSpan.Attributes()).To(ContainElement(tracing.AttrOutput.String(lookup.OutputWide)))
		})

		It("returns 500 when bindings cannot be listed", func() {
			client.PrependReactor("list", "rolebindings", func(k8stesting.Action) (bool, runtime.Object, error) {
				return true, nil, apierrors.NewForbidden(schema.GroupResource{Group: rbacv1.GroupName, Resource: "rolebindings"}, "", nil)
			})
			rec := get(handler, "/lookup")
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).To(ContainSubstring("loading role bindings"))
		})
	})

	It("rate limits lookups", func() {
		limited := server.New(lookup.NewAPISource(client, 0), nil, testLog, server.Options{
			RequestsPerSecond: 0.001,
			Burst:             1,
		}).Handler()

		Expect(get(limited, "/lookup").Code).To(Equal(http.StatusOK))
		rec := get(limited, "/lookup")
		Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
		Expect(rec.Header().Get("Retry-After")).To(Equal("1"))

		Expect(get(limited, "/healthz").Code).To(Equal(http.StatusOK), "health checks are not rate limited")
	})

	It("exposes request metrics", func() {
		Expect(get(handler, "/lookup").Code).To(Equal(http.StatusOK))

		rec := get(handler, "/metrics")
		Expect(rec.Code).To(Equal(http.StatusOK))
		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`rbac_lookup_http_requests_total{code="200",handler="/lookup"}`))
		Expect(string(body)).To(ContainSubstring("rbac_lookup_lookups_total"))
	})

	It("serves from an informer source and shuts down with its context", func() {
		source, err := lookup.NewInformerSource(client, 0)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		source.Start(ctx)
		Expect(source.WaitForCacheSync(ctx, 10*time.Second)).To(Succeed())

		srv := server.New(source, source.HasSynced, testLog, server.Options{
			Addr:                    "127.0.0.1:0",
			GracefulShutdownTimeout: time.Second,
		})
		Expect(get(srv.Handler(), "/readyz").Code).To(Equal(http.StatusOK))

		grants := decodeGrants(get(srv.Handler(), "/lookup?kind=serviceaccount"))
		Expect(grants).To(HaveLen(1))
		Expect(grants[0].Subject).To(Equal("ci:deployer"))

		done := make(chan error, 1)
		serveCtx, stop := context.WithCancel(context.Background())
		go func() {
			defer GinkgoRecover()
			done <- srv.Start(serveCtx)
		}()
		stop()
		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
	})
})
