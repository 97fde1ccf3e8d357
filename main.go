/*
Copyright © 2026 Deutsche Telekom AG.
*/
package main

import "github.com/telekom/rbac-lookup/cmd"

func main() {
	cmd.Execute()
}
