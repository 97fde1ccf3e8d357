/*
Copyright © 2026 Deutsche Telekom AG.
*/
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/trace"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"

	// Required for OIDC and exec based kubeconfig authentication
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/telekom/rbac-lookup/internal/config"
	"github.com/telekom/rbac-lookup/internal/system"
	"github.com/telekom/rbac-lookup/pkg/lookup"
	"github.com/telekom/rbac-lookup/pkg/tracing"
)

var (
	setupLog       logr.Logger
	envConfig      config.Env
	tracerProvider *tracing.Provider

	verbosity   int
	kubeconfig  string
	kubeContext string

	output         string
	kind           string
	namespace      string
	useRegex       bool
	enableGKE      bool
	chunkSize      int64
	requestTimeout time.Duration

	tracingEnabled      bool
	tracingEndpoint     string
	tracingSamplingRate float64
	tracingInsecure     bool
)

// sensitivePattern matches flag names whose values must not be logged.
var sensitivePattern = regexp.MustCompile(`(?i)(token|secret|password|passphrase|key|auth|credential|private|cert|bearer|client[-_]id)`)

const forbiddenHint = "the current user needs permission to list rolebindings and clusterrolebindings in all namespaces"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rbac-lookup [subject query]",
	Short: "Reverse lookup for Kubernetes RBAC",
	Long: `rbac-lookup lists the roles bound to users, groups and service accounts.

Every RoleBinding and ClusterRoleBinding in the cluster is read and grouped by
subject. The optional query is matched as a substring of the subject name, or
as a regular expression with --regex. With --gke, IAM roles of the cluster's
GCP project are included as project-wide grants.`,
	Example: `  rbac-lookup joe
  rbac-lookup ci --kind serviceaccount -o wide
  rbac-lookup '^dev' --regex --namespace team-a -o json`,
	Args:              cobra.RangeArgs(0, 1),
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if tracerProvider == nil {
			return nil
		}
		return tracerProvider.Shutdown(cmd.Context())
	},
	RunE: runLookup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "Log level (0-9)")
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "Path to the kubeconfig file. Defaults to $KUBECONFIG or ~/.kube/config.")
	rootCmd.PersistentFlags().StringVar(&kubeContext, "context", "", "The kubeconfig context to use. Defaults to the current context.")
	rootCmd.PersistentFlags().BoolVar(&tracingEnabled, "tracing-enabled", false, "Export OpenTelemetry traces.")
	rootCmd.PersistentFlags().StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC collector endpoint. Defaults to $OTEL_EXPORTER_OTLP_ENDPOINT.")
	rootCmd.PersistentFlags().Float64Var(&tracingSamplingRate, "tracing-sampling-rate", 1.0, "Ratio of traces to sample (0.0 to 1.0).")
	rootCmd.PersistentFlags().BoolVar(&tracingInsecure, "tracing-insecure", false, "Disable TLS for the OTLP exporter connection.")

	rootCmd.Flags().StringVarP(&output, "output", "o", lookup.OutputNormal, "Output format: normal, wide, json or yaml. Defaults to $RBAC_LOOKUP_OUTPUT.")
	rootCmd.Flags().StringVarP(&kind, "kind", "k", "", "Only show subjects of this kind: user, group or serviceaccount.")
	rootCmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Only show grants that apply in this namespace.")
	rootCmd.Flags().BoolVar(&useRegex, "regex", false, "Treat the subject query as a regular expression.")
	rootCmd.Flags().BoolVar(&enableGKE, "gke", false, "Include GCP IAM roles of the cluster's GKE project.")
	rootCmd.Flags().Int64Var(&chunkSize, "chunk-size", lookup.DefaultChunkSize, "Number of bindings to request per list call. 0 uses the default.")
	rootCmd.Flags().DurationVar(&requestTimeout, "request-timeout", 0, "Timeout for the whole lookup. 0 means no timeout.")
}

func setup(cmd *cobra.Command, _ []string) error {
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	if err := klogFlags.Set("v", strconv.Itoa(verbosity)); err != nil {
		return fmt.Errorf("unable to set log verbosity: %w", err)
	}
	ctrl.SetLogger(klog.NewKlogr())
	setupLog = klog.NewKlogr().WithName("setup")

	var err error
	if envConfig, err = config.Load(); err != nil {
		return err
	}

	tracerProvider, err = tracing.Setup(cmd.Context(), tracing.Config{
		Enabled:      tracingEnabled,
		Endpoint:     tracingEndpoint,
		SamplingRate: tracingSamplingRate,
		Insecure:     tracingInsecure,
		Mode:         tracingMode(cmd),
	}.WithEnv(envConfig), system.Version)
	if err != nil {
		return fmt.Errorf("unable to set up tracing: %w", err)
	}

	setupLog.V(1).Info("app info", "name", system.Name, "version", system.Version, "commit", system.Commit,
		"command", cmd.Name(), "flags", redactSensitiveFlags(cmd.Flags()))
	return nil
}

func tracingMode(cmd *cobra.Command) tracing.Mode {
	if cmd == serveCmd {
		return tracing.ModeServer
	}
	return tracing.ModeCLI
}

// applyOutputEnv takes the output format from the environment unless
// --output was given. Only the lookup command reads it.
func applyOutputEnv(flags *pflag.FlagSet, env config.Env) {
	if !flagChanged(flags, "output") && env.Output != "" {
		output = env.Output
	}
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

func validateLookupFlags(output string, chunkSize int64, requestTimeout time.Duration) error {
	if err := lookup.ValidateOutputFormat(output); err != nil {
		return err
	}
	if chunkSize < 0 {
		return fmt.Errorf("--chunk-size must not be negative, got %d", chunkSize)
	}
	if requestTimeout < 0 {
		return fmt.Errorf("--request-timeout must not be negative, got %s", requestTimeout)
	}
	return nil
}

// redactSensitiveFlags returns all flag values, replacing those of flags
// whose names look like secrets.
func redactSensitiveFlags(flags *pflag.FlagSet) map[string]string {
	values := map[string]string{}
	flags.VisitAll(func(f *pflag.Flag) {
		if sensitivePattern.MatchString(f.Name) {
			values[f.Name] = "[REDACTED]"
			return
		}
		values[f.Name] = f.Value.String()
	})
	return values
}

func newClientset() (kubernetes.Interface, error) {
	restConfig, err := lookup.ClientConfig(kubeconfig, kubeContext).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("unable to load Kubernetes config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create Kubernetes client: %w", err)
	}
	return clientset, nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	applyOutputEnv(cmd.Flags(), envConfig)
	if err := validateLookupFlags(output, chunkSize, requestTimeout); err != nil {
		return err
	}

	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	matcher, err := lookup.NewMatcher(query, useRegex, kind, namespace)
	if err != nil {
		return err
	}

	ctx, span := tracerProvider.Tracer().Start(cmd.Context(), "rbac-lookup",
		trace.WithAttributes(tracing.AttrOutput.String(output)))
	defer span.End()

	if requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	clientset, err := newClientset()
	if err != nil {
		return err
	}

	log := klog.NewKlogr().WithName("lookup")
	lister := lookup.NewLister(lookup.NewAPISource(clientset, chunkSize), matcher, log)
	lister.Tracer = tracerProvider.Tracer()

	if enableGKE {
		rawConfig, err := lookup.ClientConfig(kubeconfig, kubeContext).RawConfig()
		if err != nil {
			return fmt.Errorf("unable to load raw Kubernetes config: %w", err)
		}
		cluster := lookup.ParseGKEClusterInfo(&rawConfig, kubeContext)
		log.V(1).Info("GKE cluster", "cluster", cluster.ClusterName, "location", cluster.Location, "project", cluster.ProjectName)

		lister.GKE, err = lookup.NewGKEPolicyLoader(ctx, cluster.ProjectName, envConfig.GCPProject, log)
		if err != nil {
			return err
		}
	}

	if err := lister.Load(ctx); err != nil {
		return explainLoadError(err)
	}
	return lookup.Print(cmd.OutOrStdout(), output, lister.Grants())
}

func explainLoadError(err error) error {
	if apierrors.IsForbidden(err) {
		return fmt.Errorf("%w: %s", err, forbiddenHint)
	}
	if errors.Is(err, lookup.ErrNoGCPProject) {
		return fmt.Errorf("%w: set CLOUDSDK_CORE_PROJECT to the GCP project of the cluster", err)
	}
	return err
}
