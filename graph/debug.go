package graph

// Extra invariant checking on sort and collect paths. Costs a full pass
// over touched regions; leave off outside of development.
const debugChecks = false
