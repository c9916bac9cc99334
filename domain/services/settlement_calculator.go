package services

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"collateralcombat/domain/entities"
)

// SettlementCalculator turns a frozen pool snapshot and the contest's
// reference prices into a settlement record. Implementations are pure: no
// storage, no clock, no I/O. Given the same inputs they return the same
// record, so a crashed settling pass can simply run again.
type SettlementCalculator interface {
	Calculate(contest *entities.Contest, snapshot *entities.PoolSnapshot) (*entities.SettlementRecord, error)
}

// CalculatorFor returns the calculator for a game type
func CalculatorFor(gameType entities.GameType) (SettlementCalculator, error) {
	switch gameType {
	case entities.GameTypeBinaryRound:
		return &binaryRoundCalculator{}, nil
	case entities.GameTypeRelativeBattle:
		return &relativeBattleCalculator{}, nil
	case entities.GameTypeEliminationLobby:
		return &eliminationCalculator{}, nil
	default:
		return nil, entities.NewValidationError("unknown game type %q", gameType)
	}
}

// mulDiv returns floor(a*b/d). The intermediate product can pass 64 bits
// for full-size pools, hence big.Int.
func mulDiv(a, b, d int64) int64 {
	if d == 0 {
		return 0
	}
	product := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return product.Div(product, big.NewInt(d)).Int64()
}

// mulRem returns (a*b) mod d, the remainder dropped by mulDiv
func mulRem(a, b, d int64) int64 {
	if d == 0 {
		return 0
	}
	product := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	return product.Mod(product, big.NewInt(d)).Int64()
}

// feeOn computes the integer fee on a pool, rounded down so the fee never
// exceeds its exact share
func feeOn(pool, feeBps int64) int64 {
	return mulDiv(pool, feeBps, 10000)
}

// distributeProportional splits pool across stakes in proportion to their
// amounts. Integer shares are floored, then the remaining dust is handed
// out one unit at a time by largest remainder, earliest stake first on
// ties, so the split is deterministic and sums to the pool exactly.
func distributeProportional(pool int64, stakes []*entities.Stake, stakeTotal int64) map[string]int64 {
	shares := make(map[string]int64, len(stakes))
	if pool == 0 || stakeTotal == 0 || len(stakes) == 0 {
		return shares
	}

	type remainder struct {
		index int
		rem   int64
	}
	remainders := make([]remainder, 0, len(stakes))

	var distributed int64
	for i, s := range stakes {
		share := mulDiv(s.Amount, pool, stakeTotal)
		shares[s.ParticipantID] += share
		distributed += share
		remainders = append(remainders, remainder{index: i, rem: mulRem(s.Amount, pool, stakeTotal)})
	}

	sort.SliceStable(remainders, func(i, j int) bool {
		return remainders[i].rem > remainders[j].rem
	})

	dust := pool - distributed
	for i := int64(0); i < dust; i++ {
		shares[stakes[remainders[i].index].ParticipantID]++
	}
	return shares
}

// buildRecord assembles a settlement record from a participant->amount map,
// in deterministic participant order
func buildRecord(contest *entities.Contest, snapshot *entities.PoolSnapshot, outcome entities.Outcome, feeBps, feeAmount int64, amounts map[string]int64) *entities.SettlementRecord {
	participants := make([]string, 0, len(amounts))
	for id := range amounts {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	record := &entities.SettlementRecord{
		ContestID: contest.ID,
		Outcome:   outcome,
		FeeBps:    feeBps,
		FeeAmount: feeAmount,
		TotalPool: snapshot.TotalPool(),
	}
	for _, id := range participants {
		record.Payouts = append(record.Payouts, &entities.Payout{
			ContestID:      contest.ID,
			ParticipantID:  id,
			Amount:         amounts[id],
			IdempotencyKey: entities.PayoutIdempotencyKey(contest.ID, id),
		})
	}
	return record
}

// RefundRecord builds a full-refund settlement: every participant gets
// back exactly what they staked and no fee is taken. Used for ties and for
// every voided contest.
func RefundRecord(contest *entities.Contest, snapshot *entities.PoolSnapshot, outcome entities.Outcome) *entities.SettlementRecord {
	amounts := make(map[string]int64, snapshot.Count)
	for _, s := range snapshot.Stakes {
		amounts[s.ParticipantID] += s.Amount
	}
	return buildRecord(contest, snapshot, outcome, 0, 0, amounts)
}

// binaryRoundCalculator settles up/down rounds on a single symbol. The fee
// comes off the whole pool and winners split the remainder in proportion
// to their stakes.
type binaryRoundCalculator struct{}

func (c *binaryRoundCalculator) Calculate(contest *entities.Contest, snapshot *entities.PoolSnapshot) (*entities.SettlementRecord, error) {
	symbol, err := singleSymbol(contest)
	if err != nil {
		return nil, err
	}
	lock, settle, err := referencePrices(contest, symbol)
	if err != nil {
		return nil, err
	}

	upPool := snapshot.SideTotal(entities.SideUp)
	downPool := snapshot.SideTotal(entities.SideDown)

	// A one-sided round has nobody to pay from the empty side; refund
	// rather than let the lone side bet against nothing.
	if upPool == 0 || downPool == 0 {
		return RefundRecord(contest, snapshot, entities.OutcomeVoid), nil
	}

	// Moves inside the dead zone are a tie. Threshold is in basis points
	// of the lock price.
	move := settle - lock
	absMove := move
	if absMove < 0 {
		absMove = -absMove
	}
	threshold := mulDiv(lock, contest.Config.DrawThresholdBps, 10000)
	if absMove <= threshold {
		return RefundRecord(contest, snapshot, entities.OutcomeTie), nil
	}

	winningSide := entities.SideUp
	if move < 0 {
		winningSide = entities.SideDown
	}

	total := snapshot.TotalPool()
	fee := feeOn(total, contest.Config.FeeBps)
	winners := snapshot.StakesBySide(winningSide)
	amounts := distributeProportional(total-fee, winners, snapshot.SideTotal(winningSide))

	record := buildRecord(contest, snapshot, entities.Outcome(winningSide), contest.Config.FeeBps, fee, amounts)
	if err := record.Reconcile(total); err != nil {
		return nil, err
	}
	return record, nil
}

// relativeBattleCalculator settles two-token performance battles. Winners
// keep their stake untouched; the fee comes off the losing pool only and
// winners split what is left of it.
type relativeBattleCalculator struct{}

func (c *relativeBattleCalculator) Calculate(contest *entities.Contest, snapshot *entities.PoolSnapshot) (*entities.SettlementRecord, error) {
	if len(contest.Config.Symbols) != 2 {
		return nil, entities.NewValidationError("relative battle requires exactly two symbols")
	}
	symbolA, symbolB := contest.Config.Symbols[0], contest.Config.Symbols[1]

	lockA, settleA, err := referencePrices(contest, symbolA)
	if err != nil {
		return nil, err
	}
	lockB, settleB, err := referencePrices(contest, symbolB)
	if err != nil {
		return nil, err
	}

	poolA := snapshot.SideTotal(entities.Side(symbolA))
	poolB := snapshot.SideTotal(entities.Side(symbolB))
	total := snapshot.TotalPool()

	// Thin or one-sided battles refund in full.
	if total < contest.Config.MinSettlementPool || poolA == 0 || poolB == 0 {
		return RefundRecord(contest, snapshot, entities.OutcomeVoid), nil
	}

	// Compare relative performance without division: with returns
	// (settle-lock)/lock, cross-multiplying by the lock prices keeps the
	// comparison exact.
	perfA := decimal.NewFromInt(settleA - lockA).Mul(decimal.NewFromInt(lockB))
	perfB := decimal.NewFromInt(settleB - lockB).Mul(decimal.NewFromInt(lockA))

	cmp := perfA.Cmp(perfB)
	if cmp == 0 {
		return RefundRecord(contest, snapshot, entities.OutcomeTie), nil
	}

	winningSymbol, losingPool := symbolA, poolB
	if cmp < 0 {
		winningSymbol, losingPool = symbolB, poolA
	}

	fee := feeOn(losingPool, contest.Config.FeeBps)
	winners := snapshot.StakesBySide(entities.Side(winningSymbol))
	winPool := snapshot.SideTotal(entities.Side(winningSymbol))

	// Winners keep their own stake and split the taxed losing pool.
	amounts := distributeProportional(losingPool-fee, winners, winPool)
	for _, s := range winners {
		amounts[s.ParticipantID] += s.Amount
	}

	record := buildRecord(contest, snapshot, entities.Outcome(winningSymbol), contest.Config.FeeBps, fee, amounts)
	if err := record.Reconcile(total); err != nil {
		return nil, err
	}
	return record, nil
}

// eliminationCalculator settles a finished lobby from the elimination
// stamps on the snapshot's entries. One survivor pays by the frozen
// placement tier table; a round-cap finish with several survivors splits
// the prize evenly among them.
type eliminationCalculator struct{}

func (c *eliminationCalculator) Calculate(contest *entities.Contest, snapshot *entities.PoolSnapshot) (*entities.SettlementRecord, error) {
	if snapshot.Count == 0 {
		return RefundRecord(contest, snapshot, entities.OutcomeVoid), nil
	}

	total := snapshot.TotalPool()
	fee := feeOn(total, contest.Config.FeeBps)
	prize := total - fee

	var survivors []*entities.Stake
	for _, s := range snapshot.Stakes {
		if s.IsAlive() {
			survivors = append(survivors, s)
		}
	}
	sortByEntry(survivors)

	if len(survivors) > 1 {
		amounts := splitEvenly(prize, survivors)
		record := buildRecord(contest, snapshot, entities.OutcomeSurvivors, contest.Config.FeeBps, fee, amounts)
		if err := record.Reconcile(total); err != nil {
			return nil, err
		}
		return record, nil
	}

	// Rank every entrant: the survivor first, then by how long they
	// lasted, later eliminations placing higher. Ties within a round rank
	// by entry order.
	ranked := make([]*entities.Stake, 0, snapshot.Count)
	ranked = append(ranked, survivors...)
	var eliminated []*entities.Stake
	for _, s := range snapshot.Stakes {
		if !s.IsAlive() {
			eliminated = append(eliminated, s)
		}
	}
	sortByEntry(eliminated)
	sort.SliceStable(eliminated, func(i, j int) bool {
		return *eliminated[i].EliminatedRound > *eliminated[j].EliminatedRound
	})
	ranked = append(ranked, eliminated...)

	tiers := contest.Config.PayoutTiersBps
	if len(tiers) == 0 {
		tiers = entities.PayoutTiersForEntrants(snapshot.Count)
	}

	amounts := make(map[string]int64, len(tiers))
	var paid int64
	for i, tier := range tiers {
		if i >= len(ranked) {
			break
		}
		share := mulDiv(prize, tier, 10000)
		amounts[ranked[i].ParticipantID] += share
		paid += share
	}
	// Tier rounding dust goes to first place.
	if dust := prize - paid; dust > 0 && len(ranked) > 0 {
		amounts[ranked[0].ParticipantID] += dust
	}

	record := buildRecord(contest, snapshot, entities.OutcomePlacement, contest.Config.FeeBps, fee, amounts)
	if err := record.Reconcile(total); err != nil {
		return nil, err
	}
	return record, nil
}

// splitEvenly gives each stake an equal share of pool, earliest entrants
// absorbing the dust
func splitEvenly(pool int64, stakes []*entities.Stake) map[string]int64 {
	amounts := make(map[string]int64, len(stakes))
	if len(stakes) == 0 {
		return amounts
	}
	n := int64(len(stakes))
	each := pool / n
	dust := pool % n
	for i, s := range stakes {
		share := each
		if int64(i) < dust {
			share++
		}
		amounts[s.ParticipantID] += share
	}
	return amounts
}

func sortByEntry(stakes []*entities.Stake) {
	sort.SliceStable(stakes, func(i, j int) bool {
		if stakes[i].PlacedAt.Equal(stakes[j].PlacedAt) {
			return stakes[i].ID < stakes[j].ID
		}
		return stakes[i].PlacedAt.Before(stakes[j].PlacedAt)
	})
}

func singleSymbol(contest *entities.Contest) (string, error) {
	if len(contest.Config.Symbols) != 1 {
		return "", entities.NewValidationError("contest requires exactly one symbol")
	}
	return contest.Config.Symbols[0], nil
}

// referencePrices returns the lock and settle prices for a symbol, failing
// loudly if either was never captured
func referencePrices(contest *entities.Contest, symbol string) (lock, settle int64, err error) {
	lock, ok := contest.LockPrices[symbol]
	if !ok {
		return 0, 0, entities.NewInvariantViolation(fmt.Sprintf("contest %s has no lock price for %s", contest.ID, symbol))
	}
	settle, ok = contest.SettlePrices[symbol]
	if !ok {
		return 0, 0, entities.NewInvariantViolation(fmt.Sprintf("contest %s has no settle price for %s", contest.ID, symbol))
	}
	if lock <= 0 {
		return 0, 0, entities.NewInvariantViolation(fmt.Sprintf("contest %s has non-positive lock price for %s", contest.ID, symbol))
	}
	return lock, settle, nil
}
