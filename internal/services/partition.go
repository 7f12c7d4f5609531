package services

import (
	"sort"

	"github.com/asturias-jnll/Capstone2-sub000/internal/models"
)

// Every ledger write and every single-partition read resolves its table
// through this closed map. Partition identifiers are never built from
// caller input; adding a branch means adding one row here and one table
// in the schema.
var branchPartitions = map[int]string{
	1: "ibaan_transactions",
	2: "bauan_transactions",
	3: "sanjose_transactions",
	4: "rosario_transactions",
	5: "padregarcia_transactions",
	6: "lipa_transactions",
}

var branchCatalog = []models.Branch{
	{ID: 1, Name: "IMVCDC Ibaan", Location: "Ibaan, Batangas", IsMain: true},
	{ID: 2, Name: "IMVCDC Bauan", Location: "Bauan, Batangas"},
	{ID: 3, Name: "IMVCDC San Jose", Location: "San Jose, Batangas"},
	{ID: 4, Name: "IMVCDC Rosario", Location: "Rosario, Batangas"},
	{ID: 5, Name: "IMVCDC Padre Garcia", Location: "Padre Garcia, Batangas"},
	{ID: 6, Name: "IMVCDC Lipa", Location: "Lipa City, Batangas"},
}

// PartitionFor maps a branch id to its ledger partition table.
func PartitionFor(branchID int) (string, error) {
	partition, ok := branchPartitions[branchID]
	if !ok {
		return "", UnknownBranchError{BranchID: branchID}
	}
	return partition, nil
}

// AllPartitions returns every partition table in fixed branch-id order.
// Scatter reads iterate this slice so lookup order is deterministic.
func AllPartitions() []string {
	ids := make([]int, 0, len(branchPartitions))
	for id := range branchPartitions {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	partitions := make([]string, 0, len(ids))
	for _, id := range ids {
		partitions = append(partitions, branchPartitions[id])
	}
	return partitions
}

// AllBranches returns the static branch catalog.
func AllBranches() []models.Branch {
	branches := make([]models.Branch, len(branchCatalog))
	copy(branches, branchCatalog)
	return branches
}

// BranchForPartition is the reverse lookup used when a scatter read needs
// to report which branch owns the row it found.
func BranchForPartition(partition string) (int, bool) {
	for id, p := range branchPartitions {
		if p == partition {
			return id, true
		}
	}
	return 0, false
}

func isKnownPartition(partition string) bool {
	_, ok := BranchForPartition(partition)
	return ok
}
