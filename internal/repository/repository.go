package repository

import (
	"reserva/internal/database"
)

type Repositories struct {
	Consumers      *ConsumerRepository
	Establishments *EstablishmentRepository
	Slots          *SlotRepository
	Reservations   *ReservationRepository
	ClientStats    *ClientStatsRepository
	Disputes       *DisputeRepository
	Trust          *TrustRepository
	Waitlist       *WaitlistRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Consumers:      NewConsumerRepository(db),
		Establishments: NewEstablishmentRepository(db),
		Slots:          NewSlotRepository(db),
		Reservations:   NewReservationRepository(db),
		ClientStats:    NewClientStatsRepository(db),
		Disputes:       NewDisputeRepository(db),
		Trust:          NewTrustRepository(db),
		Waitlist:       NewWaitlistRepository(db),
	}
}
