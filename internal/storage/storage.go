// Package storage wires the repositories for the configured backend.
package storage

import (
	slotsrepo "slotswapper/internal/slots/repository"
	"slotswapper/internal/storage/memory"
	swapsrepo "slotswapper/internal/swaps/repository"
	usersrepo "slotswapper/internal/users/repository"
	"slotswapper/pkg/config"
	"slotswapper/pkg/db"
	mongotx "slotswapper/pkg/db/mongo"
	"slotswapper/pkg/db/postgres"
)

type Repositories struct {
	Slots        slotsrepo.SlotRepository
	SwapRequests swapsrepo.SwapRequestRepository
	History      swapsrepo.HistoryRepository
	Users        usersrepo.UserRepository
	Tx           db.TransactionManager
}

// Open builds repositories on top of the connection cfg.SetStorage opened.
func Open(cfg *config.Config) *Repositories {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool := cfg.Client.Postgres
		return &Repositories{
			Slots:        slotsrepo.NewPostgresSlotRepository(pool),
			SwapRequests: swapsrepo.NewPostgresSwapRequestRepository(pool),
			History:      swapsrepo.NewPostgresHistoryRepository(pool),
			Users:        usersrepo.NewPostgresUserRepository(pool),
			Tx:           postgres.NewTransactionManager(pool),
		}
	default:
		return &Repositories{
			Slots:        slotsrepo.NewMongoSlotRepository(cfg),
			SwapRequests: swapsrepo.NewMongoSwapRequestRepository(cfg),
			History:      swapsrepo.NewMongoHistoryRepository(cfg),
			Users:        usersrepo.NewMongoUserRepository(cfg),
			Tx:           mongotx.NewTransactionManager(cfg.Client.Mongo),
		}
	}
}

// InMemory returns repositories backed by a fresh in-process store.
func InMemory() *Repositories {
	store := memory.NewStore()
	return &Repositories{
		Slots:        store.Slots(),
		SwapRequests: store.SwapRequests(),
		History:      store.History(),
		Users:        store.Users(),
		Tx:           store.TransactionManager(),
	}
}
