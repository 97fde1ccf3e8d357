// Package helpers provides small utilities shared by the lookup packages:
// subject keying, subject kind normalization and IAM member parsing.
package helpers
