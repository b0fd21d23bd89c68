package sd

import "testing"

func TestNewTarget_UsesExplicitServiceName(t *testing.T) {
	target := NewTarget("", 0, DiscoveryTarget{labelServiceName: "checkout"})
	if target.ServiceName() != "checkout" {
		t.Fatalf("ServiceName() = %q, want checkout", target.ServiceName())
	}
}

func TestNewTarget_InfersK8sServiceName(t *testing.T) {
	target := NewTarget("", 0, DiscoveryTarget{
		"__meta_kubernetes_namespace":            "prod",
		"__meta_kubernetes_pod_container_name":   "api",
	})
	if want := "ebpf/prod/api"; target.ServiceName() != want {
		t.Fatalf("ServiceName() = %q, want %q", target.ServiceName(), want)
	}
}

func TestNewTarget_DropsReservedLabelsExceptName(t *testing.T) {
	target := NewTarget("", 0, DiscoveryTarget{
		"__meta_something": "x",
		"app":              "api",
	})
	if _, ok := target.Labels()["__meta_something"]; ok {
		t.Fatal("reserved label should have been stripped")
	}
	if target.Labels()["app"] != "api" {
		t.Fatal("non-reserved label should survive")
	}
	if target.Labels()["__name__"] != "process_cpu" {
		t.Fatalf("__name__ should default to process_cpu, got %q", target.Labels()["__name__"])
	}
}

func TestNewTarget_InjectsContainerIDAndPid(t *testing.T) {
	target := NewTarget("abc123", 42, DiscoveryTarget{})
	if target.Labels()["__container_id__"] != "abc123" {
		t.Fatal("expected container id label to be injected")
	}
	if target.Labels()["__process_pid__"] != "42" {
		t.Fatal("expected process pid label to be injected")
	}
}

func TestTarget_Fingerprint_StableAndOrderIndependent(t *testing.T) {
	a := NewTarget("", 0, DiscoveryTarget{"a": "1", "b": "2"})
	b := NewTarget("", 0, DiscoveryTarget{"b": "2", "a": "1"})
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("fingerprint should not depend on input map iteration order")
	}

	c := NewTarget("", 0, DiscoveryTarget{"a": "1", "b": "3"})
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("different label values should produce different fingerprints")
	}
}

func TestNewTarget_DefaultsToUnspecified(t *testing.T) {
	target := NewTarget("", 0, DiscoveryTarget{})
	if target.ServiceName() != "unspecified" {
		t.Fatalf("ServiceName() = %q, want unspecified", target.ServiceName())
	}
}
