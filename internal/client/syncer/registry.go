package syncer

import "github.com/dmitrijs2005/splitsync/internal/client/models"

// Priorities of the synchronized types. A type never runs before the types
// its foreign keys point to.
var Priorities = map[models.EntityType]int{
	models.TypeUser:         1,
	models.TypeGroup:        1,
	models.TypeRequisition:  2,
	models.TypeBankAccount:  2,
	models.TypeGroupMember:  2,
	models.TypePayment:      4,
	models.TypePaymentSplit: 4,
	models.TypeTransaction:  5,
	models.TypeArchive:      6,
}

// NewManagers builds one Manager per synchronized type. base supplies batch
// size, workers and call timeout; type and priority are filled in here.
func NewManagers(base Options, deps Deps) []TypeSyncer {
	opts := func(t models.EntityType) Options {
		o := base
		o.EntityType = t
		o.Priority = Priorities[t]
		return o
	}
	return []TypeSyncer{
		NewManager[models.User](opts(models.TypeUser), deps),
		NewManager[models.Group](opts(models.TypeGroup), deps),
		NewManager[models.Requisition](opts(models.TypeRequisition), deps),
		NewManager[models.BankAccount](opts(models.TypeBankAccount), deps),
		NewManager[models.GroupMember](opts(models.TypeGroupMember), deps),
		NewManager[models.Payment](opts(models.TypePayment), deps),
		NewManager[models.PaymentSplit](opts(models.TypePaymentSplit), deps),
		NewManager[models.Transaction](opts(models.TypeTransaction), deps),
		NewManager[models.ArchiveMarker](opts(models.TypeArchive), deps),
	}
}
