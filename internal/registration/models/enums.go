package models

// Form option sets enforced server-side. The client renders the same lists;
// the server remains authoritative.

// BusinessCategories are the accepted answers for qual_seu_negocio.
var BusinessCategories = map[string]bool{
	"Academia": true, "Adega": true, "Bar": true, "Bomboniere": true,
	"Cantina": true, "Clube esportivo": true, "Condomínio": true,
	"Confeitaria": true, "Doceria": true, "Dogueiro": true, "Escola": true,
	"Food service": true, "Hotel": true, "Instituição religiosa": true,
	"Lanchonete": true, "Mercearia": true, "Mini mercado": true,
	"Padaria": true, "Pastelaria": true, "Pizzaria": true,
	"Restaurante": true, "Outros": true,
}

// ContactRoles are the accepted answers for sua_funcao.
var ContactRoles = map[string]bool{
	"Proprietário": true, "Gerente": true, "Estoquista": true,
}

// Genders are the accepted answers for genero.
var Genders = map[string]bool{
	"Feminino": true, "masculino": true, "outros": true,
	"não quero me identificar": true,
}

// StateCodes are the 27 Brazilian UF codes accepted for estado.
var StateCodes = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true,
	"DF": true, "ES": true, "GO": true, "MA": true, "MT": true, "MS": true,
	"MG": true, "PA": true, "PB": true, "PR": true, "PE": true, "PI": true,
	"RJ": true, "RN": true, "RS": true, "RO": true, "RR": true, "SC": true,
	"SP": true, "SE": true, "TO": true,
}
