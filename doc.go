// Package finclose automates month-end financial close tasks. It provides a
// generic workflow engine that runs directed graphs of named steps over a
// checkpointed State, plus the deterministic kernels those graphs sequence:
// account reconciliation with materiality-based approval routing, and invoice
// accrual with service-period proration and balanced journal-entry synthesis.
//
// Data extraction, the classification oracle and notification delivery are
// external collaborators consumed through the interfaces in service/source,
// service/oracle and service/notify.
package finclose
