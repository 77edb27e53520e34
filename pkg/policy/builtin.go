package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		remoteTransportPolicy(),
		namingPolicy(),
		refHygienePolicy(),
	}
}

// remoteTransportPolicy rejects remotes served over insecure transports.
func remoteTransportPolicy() Policy {
	return Policy{
		Name:        "remote-transport",
		Description: "Requires remote repositories to be served over HTTPS (file URLs are allowed for local mirrors)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"transport", "security"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package updatemgr.policies.transport

import rego.v1

deny contains violation if {
	input.request
	url := input.request.remote.url

	not startswith(url, "https://")
	not startswith(url, "file://")
	violation := {
		"message": sprintf("remote '%s' uses insecure transport: %s", [input.request.remote.name, url]),
		"severity": "error",
	}
}

deny contains violation if {
	input.request
	url := input.request.remote.url

	url == ""
	violation := {
		"message": sprintf("remote '%s' has no URL", [input.request.remote.name]),
		"severity": "error",
	}
}`,
	}
}

// namingPolicy enforces naming conventions on OS and remote names.
func namingPolicy() Policy {
	return Policy{
		Name:        "naming",
		Description: "Enforces naming conventions for OS names and remote names (lowercase, alphanumeric, hyphens only)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package updatemgr.policies.naming

import rego.v1

deny contains violation if {
	input.request
	osname := input.request.osname

	not regex.match("^[a-z][a-z0-9-]*$", osname)
	violation := {
		"message": sprintf("OS name '%s' must start with a letter and contain only lowercase letters, numbers, and hyphens", [osname]),
		"severity": "error",
	}
}

deny contains violation if {
	input.request
	name := input.request.remote.name

	not regex.match("^[a-z][a-z0-9-]*$", name)
	violation := {
		"message": sprintf("remote name '%s' must start with a letter and contain only lowercase letters, numbers, and hyphens", [name]),
		"severity": "error",
	}
}

deny contains violation if {
	input.request
	name := input.request.remote.name

	count(name) > 63
	violation := {
		"message": sprintf("remote name '%s' must not exceed 63 characters", [name]),
		"severity": "error",
	}
}`,
	}
}

// refHygienePolicy flags suspicious ref names and oversized pull sets.
func refHygienePolicy() Policy {
	return Policy{
		Name:        "ref-hygiene",
		Description: "Warns about refs with unexpected characters and unusually large pull sets",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"refs", "hygiene"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package updatemgr.policies.refs

import rego.v1

deny contains violation if {
	input.request
	some ref in input.request.refs

	not regex.match("^[A-Za-z0-9][A-Za-z0-9._/-]*$", ref)
	violation := {
		"message": sprintf("ref '%s' contains unexpected characters", [ref]),
		"severity": "warning",
	}
}

deny contains violation if {
	input.request

	count(input.request.refs) > 10
	violation := {
		"message": sprintf("pulling %d refs in one update - please review", [count(input.request.refs)]),
		"severity": "warning",
	}
}`,
	}
}
