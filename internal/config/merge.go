package config

import "fmt"

// mergeProgramSection applies the defaults-merge rule: if the program
// references a "defaults=" DefaultSettings block, the donor is
// deep-copied, its Env and Monitoring subsections are merged
// key-by-key with the program's own (program keys win), and then every
// top-level key the program defines overrides the donor's.
func mergeProgramSection(item *parsedSection, defaults map[string]*parsedSection) (*parsedSection, error) {
	defaultsName := item.values["defaults"]
	if defaultsName == "" {
		return item, nil
	}
	donor, ok := defaults[defaultsName]
	if !ok {
		return nil, fmt.Errorf("program %q in %q uses defaults %q, but no such DefaultSettings section was found", item.name, item.file, defaultsName)
	}

	merged := donor.clone()
	mergeSubsection(merged, item, "Env")
	mergeSubsection(merged, item, "Monitoring")

	for k, v := range item.values {
		merged.values[k] = v
	}
	for subName, subVals := range item.sub {
		if subName == "Env" || subName == "Monitoring" {
			continue
		}
		merged.sub[subName] = cloneMap(subVals)
	}

	merged.name = item.name
	merged.kind = item.kind
	merged.file = item.file
	return merged, nil
}

func mergeSubsection(merged, item *parsedSection, name string) {
	donorSub, donorHas := merged.sub[name]
	itemSub, itemHas := item.sub[name]
	switch {
	case donorHas && itemHas:
		out := cloneMap(donorSub)
		for k, v := range itemSub {
			out[k] = v
		}
		merged.sub[name] = out
	case itemHas:
		merged.sub[name] = cloneMap(itemSub)
	}
}
