package sd

import "testing"

func TestContainerIDFromCgroupLine(t *testing.T) {
	cases := []struct {
		line string
		want string
		ok   bool
	}{
		{"0::/system.slice/docker-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.scope", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"0::/kubepods/burstable/podxyz/bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", true},
		{"0::/user.slice", "", false},
	}
	for _, c := range cases {
		got, ok := ContainerIDFromCgroupLine(c.line)
		if ok != c.ok || got != c.want {
			t.Errorf("ContainerIDFromCgroupLine(%q) = (%q, %v), want (%q, %v)", c.line, got, ok, c.want, c.ok)
		}
	}
}

func TestContainerIDFromTarget_PrefersExistingLabel(t *testing.T) {
	cid, ok := ContainerIDFromTarget(DiscoveryTarget{labelContainerID: "already-known"})
	if !ok || cid != "already-known" {
		t.Fatalf("got (%q, %v)", cid, ok)
	}
}

func TestContainerIDFromTarget_StripsK8sPrefix(t *testing.T) {
	cid, ok := ContainerIDFromTarget(DiscoveryTarget{"__meta_kubernetes_pod_container_id": "containerd://abc123"})
	if !ok || cid != "abc123" {
		t.Fatalf("got (%q, %v), want (abc123, true)", cid, ok)
	}
}

func TestContainerIDFromTarget_NoneFound(t *testing.T) {
	_, ok := ContainerIDFromTarget(DiscoveryTarget{})
	if ok {
		t.Fatal("expected no container id to be found")
	}
}
