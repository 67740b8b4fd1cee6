// Package score implements the source credibility model: the label to
// score lookup, the article → author → source aggregation and the
// prior/evidence blending rule. Everything here is pure; persistence lives
// in the data and store packages.
package score
