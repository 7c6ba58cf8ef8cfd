// Package models defines the core domain models for the split ledger.
//
// # Persisted models
//
//   - Group, Member, User: owned by the group administration collaborator;
//     the ledger only reads them (membership, roles, settlement preferences).
//   - Expense: a cost paid by one member on behalf of the group.
//   - Split: one user's share of an expense. Owned by its Expense.
//   - Debt: a directed obligation debtor -> creditor created from a Split.
//     Debts are never deleted by settlement, only stamped with SettledAt.
//
// # Derived models
//
//   - SettlementTransaction: a proposed payment produced from outstanding debts.
//     It has no row of its own; executing it stamps the underlying debts.
//   - SettlementSummary, SettlementAnalytics, DebtRecord: read models for reporting.
//
// # Design Principles
//
//  1. Money is decimal.Decimal with two fractional digits, never float64.
//  2. Relationships are ID strings, not pointers.
//  3. Enumerations are string types so they read well in logs and on the wire.
package models
