package learner

import (
	"testing"

	"github.com/quantfold/themegraph/internal/core/domain"
	"github.com/quantfold/themegraph/internal/graph"
)

func TestClassifyRoleLagTable(t *testing.T) {
	tests := []struct {
		name string
		lag  int
		want domain.MemberRole
	}{
		{name: "leads by two days", lag: -2, want: domain.RoleDriver},
		{name: "leads by one day", lag: -1, want: domain.RoleBeneficiary},
		{name: "concurrent", lag: 0, want: domain.RoleBeneficiary},
		{name: "trails by one day", lag: 1, want: domain.RoleBeneficiary},
		{name: "trails by three days", lag: 3, want: domain.RoleBeneficiary},
		{name: "trails by four days", lag: 4, want: domain.RolePeripheral},
		{name: "trails by five days", lag: 5, want: domain.RolePeripheral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRole(nil, "TICK", []string{"REF"}, tt.lag)
			if got != tt.want {
				t.Errorf("ClassifyRole(lag=%d) = %s, want %s", tt.lag, got, tt.want)
			}
		})
	}
}

func TestClassifyRoleSupplierWinsOutright(t *testing.T) {
	g := graph.New(nil)
	g.AddEdge("SUPP", "NVDA", graph.RelSupplier, 0.8, nil)

	if got := ClassifyRole(g, "SUPP", []string{"NVDA"}, 5); got != domain.RolePicksAndShovels {
		t.Errorf("supplier of a reference = %s, want %s", got, domain.RolePicksAndShovels)
	}

	if got := ClassifyRole(g, "SUPP", []string{"AMD"}, 5); got != domain.RolePeripheral {
		t.Errorf("supplier of an unrelated ticker = %s, want %s", got, domain.RolePeripheral)
	}

	// customers of a reference are not suppliers
	if got := ClassifyRole(g, "NVDA", []string{"SUPP"}, 5); got != domain.RolePeripheral {
		t.Errorf("customer of a reference = %s, want %s", got, domain.RolePeripheral)
	}
}

func TestClassifyRoleDeterministic(t *testing.T) {
	g := graph.New(nil)
	g.AddEdge("SUPP", "NVDA", graph.RelSupplier, 0.8, nil)

	for i := 0; i < 10; i++ {
		if got := ClassifyRole(g, "SUPP", []string{"NVDA"}, -2); got != domain.RolePicksAndShovels {
			t.Fatalf("call %d: got %s, want stable %s", i, got, domain.RolePicksAndShovels)
		}

		if got := ClassifyRole(nil, "TICK", nil, -2); got != domain.RoleDriver {
			t.Fatalf("call %d: got %s, want stable %s", i, got, domain.RoleDriver)
		}
	}
}
