//go:build !darwin

package permissions

// Other platforms have no privacy prompts to wait on.

func microphoneStatus() Status    { return Authorized }
func accessibilityStatus() Status { return Authorized }
