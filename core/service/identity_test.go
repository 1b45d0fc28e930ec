package service_test

import (
	"strings"
	"testing"

	"github.com/momentics/zerocopy-ipc/api"
	"github.com/momentics/zerocopy-ipc/core/service"
)

func TestIdentityIsStableForSameInputs(t *testing.T) {
	cfg := service.DefaultGlobalConfig()

	a := service.Identity("my-topic", api.PatternPublishSubscribe, cfg)
	b := service.Identity("my-topic", api.PatternPublishSubscribe, cfg)
	if a != b {
		t.Fatalf("Identity not stable across calls: %q != %q", a, b)
	}
}

func TestIdentityDiffersByNameOrPattern(t *testing.T) {
	cfg := service.DefaultGlobalConfig()

	base := service.Identity("topic-a", api.PatternPublishSubscribe, cfg)
	otherName := service.Identity("topic-b", api.PatternPublishSubscribe, cfg)
	otherPattern := service.Identity("topic-a", api.PatternEvent, cfg)

	if base == otherName {
		t.Fatal("Identity did not change with a different service name")
	}
	if base == otherPattern {
		t.Fatal("Identity did not change with a different messaging pattern")
	}
}

func TestIdentityIsHexEncoded(t *testing.T) {
	cfg := service.DefaultGlobalConfig()
	uuid := service.Identity("my-topic", api.PatternPublishSubscribe, cfg)

	if strings.ContainsAny(uuid, "ghijklmnopqrstuvwxyzGHIJKLMNOPQRSTUVWXYZ") {
		t.Fatalf("Identity() = %q, want hex-only characters", uuid)
	}
}

func TestPathBuildersIncludePrefixAndSuffix(t *testing.T) {
	cfg := service.DefaultGlobalConfig()
	cfg.Global.RootPath = "/tmp/iceoryx2-test"
	uuid := "deadbeef"

	path := service.StaticConfigPath(cfg, uuid)
	if !strings.HasSuffix(path, cfg.Global.Prefix+uuid+cfg.Global.Service.StaticConfigStorageSuffix) {
		t.Fatalf("StaticConfigPath() = %q, missing expected prefix/suffix", path)
	}

	dynPath := service.DynamicConfigPath(cfg, uuid)
	if !strings.HasSuffix(dynPath, cfg.Global.Prefix+uuid+cfg.Global.Service.DynamicConfigStorageSuffix) {
		t.Fatalf("DynamicConfigPath() = %q, missing expected prefix/suffix", dynPath)
	}

	nodeID := "node-1"
	monitorPath := service.NodeMonitorPath(cfg, nodeID)
	if !strings.HasSuffix(monitorPath, cfg.Global.Prefix+nodeID+cfg.Global.Node.MonitorSuffix) {
		t.Fatalf("NodeMonitorPath() = %q, missing expected prefix/suffix", monitorPath)
	}

	tagPath := service.ServiceTagPath(cfg, nodeID, uuid)
	if !strings.HasSuffix(tagPath, cfg.Global.Prefix+nodeID+"_"+uuid+cfg.Global.Node.ServiceTagSuffix) {
		t.Fatalf("ServiceTagPath() = %q, missing expected prefix/suffix", tagPath)
	}
}
