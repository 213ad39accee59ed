package providers

import (
	"github.com/smallbiznis/digistore/internal/providers/email"
	"github.com/smallbiznis/digistore/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
