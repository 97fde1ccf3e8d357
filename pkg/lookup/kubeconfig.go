// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"k8s.io/client-go/tools/clientcmd"
)

// ClientConfig returns a deferred-loading kubeconfig honouring KUBECONFIG,
// an explicit kubeconfig path and a context override.
func ClientConfig(kubeconfigPath, kubeContext string) clientcmd.ClientConfig {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = kubeconfigPath
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		rules,
		&clientcmd.ConfigOverrides{CurrentContext: kubeContext},
	)
}
