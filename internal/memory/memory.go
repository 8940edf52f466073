package memory

import (
	"github.com/HarshalNinawe/technoupi2/internal/domain"
)

var (
	_ domain.AccountStore   = (*AccountRepository)(nil)
	_ domain.TransactionLog = (*TransferRepository)(nil)
	_ domain.Pinger         = (*AccountRepository)(nil)
)
